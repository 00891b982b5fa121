package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
)

func findingFor(res *Result, category string) *Finding {
	for i := range res.Findings {
		if res.Findings[i].Category == category {
			return &res.Findings[i]
		}
	}
	return nil
}

func TestAnalyze_Safe(t *testing.T) {
	res := NewAnalyzer().Analyze("See you at dinner tonight, bring the salad.")
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, LevelSafe, res.RiskLevel)
	assert.False(t, res.IsSuspicious)
	assert.Empty(t, res.Findings)
}

func TestAnalyze_WeightedCategories(t *testing.T) {
	res := NewAnalyzer().Analyze("This is urgent. Your bank account needs attention, click here.")

	// urgency 1 + financial 2 + action_requests 2
	assert.Equal(t, 5, res.Score)
	assert.Equal(t, LevelLow, res.RiskLevel)
	assert.False(t, res.IsSuspicious)
	require.Len(t, res.Findings, 3)
	assert.Equal(t, []string{"bank account"}, findingFor(res, "financial").MatchedKeywords)
}

func TestAnalyze_CaseInsensitiveAndCountsDistinctKeywords(t *testing.T) {
	res := NewAnalyzer().Analyze("Police ARREST warrant. police again.")

	f := findingFor(res, "threats")
	require.NotNil(t, f)
	assert.ElementsMatch(t, []string{"arrest", "police", "warrant"}, f.MatchedKeywords)
	assert.Equal(t, 9, f.Score)
	assert.Equal(t, LevelSuspicious, res.RiskLevel)
	assert.True(t, res.IsSuspicious)
}

func TestAnalyze_SuspiciousLinks(t *testing.T) {
	a := NewAnalyzer()

	res := a.Analyze("track it at bit.ly/abc123 and also tinyurl.com/xyz")
	f := findingFor(res, "suspicious_links")
	require.NotNil(t, f)
	assert.Equal(t, 3, f.Score, "links count once")
	assert.Len(t, f.MatchedKeywords, 2)

	res = a.Analyze("open http://192.168.10.4/pay now")
	assert.NotNil(t, findingFor(res, "suspicious_links"))

	res = a.Analyze("see https://example.com/about")
	assert.Nil(t, findingFor(res, "suspicious_links"))
}

func TestAnalyze_ExcessiveCaps(t *testing.T) {
	a := NewAnalyzer()

	res := a.Analyze("YOU MUST RESPOND TO THIS MESSAGE TODAY")
	assert.NotNil(t, findingFor(res, "excessive_caps"))
	assert.Equal(t, 2, res.Score)

	// Short shouting is ignored.
	res = a.Analyze("HELLO THERE")
	assert.Nil(t, findingFor(res, "excessive_caps"))
}

func TestAnalyze_HighRisk(t *testing.T) {
	text := "Dear customer, this is customer care from the income tax department. " +
		"Your account will be blocked and legal action taken. Share your CVV immediately: bit.ly/x1"
	res := NewAnalyzer().Analyze(text)

	assert.Greater(t, res.Score, 10)
	assert.Equal(t, LevelHighRisk, res.RiskLevel)
	assert.True(t, res.IsSuspicious)
}

func TestNewAnalyzerWith_LowercasesKeywords(t *testing.T) {
	a := NewAnalyzerWith([]Category{{Name: "custom", Weight: 4, Keywords: []string{"Crypto Doubler"}}})
	res := a.Analyze("try the CRYPTO DOUBLER app")
	assert.Equal(t, 4, res.Score)
	assert.Equal(t, LevelLow, res.RiskLevel)
}

func TestBand(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelSafe},
		{1, LevelLow},
		{5, LevelLow},
		{6, LevelSuspicious},
		{10, LevelSuspicious},
		{11, LevelHighRisk},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Band(tt.score), "score %d", tt.score)
	}
}

func TestCombine(t *testing.T) {
	low := &Result{Score: 4, RiskLevel: LevelLow}

	out := Combine(low, nil)
	assert.Equal(t, Combined{Score: 4, RiskLevel: "low"}, out)

	out = Combine(low, &risk.Result{Score: 6, RiskLevel: risk.LevelHighRisk})
	assert.Equal(t, 10, out.Score)
	assert.Equal(t, "high_risk", out.RiskLevel)

	// A safe sender never lowers the content verdict.
	high := &Result{Score: 12, RiskLevel: LevelHighRisk}
	out = Combine(high, &risk.Result{Score: 0, RiskLevel: risk.LevelSafe})
	assert.Equal(t, "high_risk", out.RiskLevel)
}

func TestSeverity_Order(t *testing.T) {
	levels := []string{"safe", "low", "suspicious", "high_risk"}
	for i := 1; i < len(levels); i++ {
		assert.Greater(t, Severity(levels[i]), Severity(levels[i-1]))
	}
	assert.Equal(t, 0, Severity(strings.ToUpper("unknown")))
}
