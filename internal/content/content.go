// Package content scores free text (SMS, email, chat, call transcripts) for
// fraud indicators using weighted keyword dictionaries and a few structural
// heuristics.
//
// Content bands differ from entity risk bands: 0 safe, 1-5 low,
// 6-10 suspicious, above 10 high_risk.
package content

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/metrics"
	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/risk"
)

// Level is a content risk band.
type Level string

const (
	LevelSafe       Level = "safe"
	LevelLow        Level = "low"
	LevelSuspicious Level = "suspicious"
	LevelHighRisk   Level = "high_risk"
)

// Heuristic scores.
const (
	linkScore       = 3
	capsScore       = 2
	capsRatio       = 0.5
	capsMinLength   = 20
	lowCeiling      = 5
	suspiciousLimit = 10
)

// Type is the optional kind of submitted content.
type Type string

const (
	TypeSMS        Type = "sms"
	TypeEmail      Type = "email"
	TypeChat       Type = "chat"
	TypeTranscript Type = "call_transcript"
	TypeOther      Type = "other"
)

// Types lists the accepted content types.
var Types = []string{string(TypeSMS), string(TypeEmail), string(TypeChat), string(TypeTranscript), string(TypeOther)}

// Category is a weighted keyword dictionary. Keywords are lower case and
// matched as substrings.
type Category struct {
	Name     string
	Weight   int
	Keywords []string
}

// DefaultCategories are the built-in dictionaries.
var DefaultCategories = []Category{
	{Name: "urgency", Weight: 1, Keywords: []string{
		"urgent", "immediately", "act now", "right away", "expires today",
		"last chance", "limited time", "within 24 hours", "final notice",
	}},
	{Name: "financial", Weight: 2, Keywords: []string{
		"bank account", "credit card", "debit card", "account number", "wire transfer",
		"upi pin", "cvv", "bitcoin", "gift card", "refund", "processing fee", "loan approved",
	}},
	{Name: "threats", Weight: 3, Keywords: []string{
		"arrest", "legal action", "suspended", "police", "lawsuit",
		"penalty", "warrant", "deactivated", "will be blocked",
	}},
	{Name: "impersonation", Weight: 3, Keywords: []string{
		"bank official", "customer care", "tax department", "income tax", "reserve bank",
		"internal revenue", "government official", "microsoft support", "tech support", "courier company",
	}},
	{Name: "action_requests", Weight: 2, Keywords: []string{
		"click here", "click the link", "verify your", "confirm your", "share your",
		"send money", "download", "install", "call this number", "reply with", "screen share",
	}},
	{Name: "suspicious_patterns", Weight: 1, Keywords: []string{
		"congratulations", "you have won", "lottery", "prize", "winner",
		"free gift", "kyc", "guaranteed", "risk-free", "dear customer",
	}},
}

// linkPattern matches common link shorteners and URLs with a raw IPv4 host.
var linkPattern = regexp.MustCompile(`(?i)\b(?:bit\.ly|tinyurl\.com|goo\.gl|t\.co|ow\.ly|is\.gd|buff\.ly|cutt\.ly|rb\.gy|tiny\.cc)/\S*|https?://\d{1,3}(?:\.\d{1,3}){3}\S*`)

// Finding records what one category or heuristic contributed.
type Finding struct {
	Category        string   `json:"category"`
	MatchedKeywords []string `json:"matchedKeywords"`
	Score           int      `json:"score"`
}

// Result is the analysis of one text.
type Result struct {
	IsSuspicious bool      `json:"isSuspicious"`
	Score        int       `json:"score"`
	RiskLevel    Level     `json:"riskLevel"`
	Findings     []Finding `json:"findings"`
}

// Analyzer scores text against its dictionaries. It is safe for concurrent use.
type Analyzer struct {
	categories []Category
}

// NewAnalyzer creates an analyzer with DefaultCategories.
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWith(DefaultCategories)
}

// NewAnalyzerWith creates an analyzer with custom dictionaries.
func NewAnalyzerWith(categories []Category) *Analyzer {
	cats := make([]Category, len(categories))
	for i, c := range categories {
		kw := make([]string, len(c.Keywords))
		for j, k := range c.Keywords {
			kw[j] = strings.ToLower(k)
		}
		cats[i] = Category{Name: c.Name, Weight: c.Weight, Keywords: kw}
	}
	return &Analyzer{categories: cats}
}

// Analyze scores text. Each category adds matched-keyword-count x weight.
// A shortener or raw-IP link adds 3 once. Text longer than 20 characters
// that is more than half upper-case letters adds 2.
func (a *Analyzer) Analyze(text string) *Result {
	lower := strings.ToLower(text)
	res := &Result{Findings: []Finding{}}

	for _, c := range a.categories {
		var matched []string
		for _, kw := range c.Keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) == 0 {
			continue
		}
		f := Finding{Category: c.Name, MatchedKeywords: matched, Score: len(matched) * c.Weight}
		res.Findings = append(res.Findings, f)
		res.Score += f.Score
	}

	if links := linkPattern.FindAllString(text, -1); len(links) > 0 {
		res.Findings = append(res.Findings, Finding{Category: "suspicious_links", MatchedKeywords: links, Score: linkScore})
		res.Score += linkScore
	}

	if length := utf8.RuneCountInString(text); length > capsMinLength {
		upper := 0
		for _, r := range text {
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if float64(upper)/float64(length) > capsRatio {
			res.Findings = append(res.Findings, Finding{Category: "excessive_caps", MatchedKeywords: []string{}, Score: capsScore})
			res.Score += capsScore
		}
	}

	res.RiskLevel = Band(res.Score)
	res.IsSuspicious = Severity(string(res.RiskLevel)) >= Severity(string(LevelSuspicious))
	metrics.ContentAnalysesTotal.WithLabelValues(string(res.RiskLevel)).Inc()
	return res
}

// Band maps a content score to a level.
func Band(score int) Level {
	switch {
	case score <= 0:
		return LevelSafe
	case score <= lowCeiling:
		return LevelLow
	case score <= suspiciousLimit:
		return LevelSuspicious
	default:
		return LevelHighRisk
	}
}

// Severity orders content and entity levels on one scale:
// high_risk > suspicious > low > safe. Unknown levels rank as safe.
func Severity(level string) int {
	switch level {
	case string(LevelHighRisk):
		return 3
	case string(LevelSuspicious):
		return 2
	case string(LevelLow):
		return 1
	default:
		return 0
	}
}

// Combined is the merged verdict of content and sender.
type Combined struct {
	Score     int    `json:"score"`
	RiskLevel string `json:"riskLevel"`
}

// Combine adds the sender's entity score to the content score and keeps the
// more severe of the two levels. A nil sender returns the content verdict.
func Combine(c *Result, sender *risk.Result) Combined {
	out := Combined{Score: c.Score, RiskLevel: string(c.RiskLevel)}
	if sender == nil {
		return out
	}
	out.Score += sender.Score
	if Severity(string(sender.RiskLevel)) > Severity(out.RiskLevel) {
		out.RiskLevel = string(sender.RiskLevel)
	}
	return out
}
