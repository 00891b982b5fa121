package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hello  ", 100))
	assert.Equal(t, "hel", SanitizeString("hello", 3))
	assert.Equal(t, "ab", SanitizeString("a\x00b", 100))
}

func TestValidate_CollectsInOrder(t *testing.T) {
	errs := Validate(
		Required("identifier", ""),
		Purpose("purpose", "Login!"),
		Digits("code", "12a4"),
		MaxLength("content", strings.Repeat("x", 11), 10),
	)
	assert.Len(t, errs, 4)
	assert.Equal(t, "identifier", errs[0].Field)
	assert.Equal(t, "identifier: is required", errs.Error())
}

func TestValidate_NoErrors(t *testing.T) {
	errs := Validate(
		Required("identifier", "9876543210"),
		Purpose("purpose", "login"),
		Digits("code", "012345"),
		OneOf("action", "blocked", "blocked", "allowed"),
	)
	assert.Empty(t, errs)
}

func TestOneOf(t *testing.T) {
	assert.Nil(t, OneOf("action", "", "a")())
	assert.NotNil(t, OneOf("action", "c", "a", "b")())
}

func TestValidationErrors_Empty(t *testing.T) {
	assert.Equal(t, "validation failed", ValidationErrors{}.Error())
}

func TestRequestSizeMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestSizeMiddleware(8))
	r.POST("/", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/", strings.NewReader(`{"content":"far too long"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAbort(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Abort(c, ValidationErrors{{Field: "code", Message: "is required"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"validation_error"`)
	assert.True(t, c.IsAborted())
}
