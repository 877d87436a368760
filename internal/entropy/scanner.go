package entropy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Issue names the kind of finding.
type Issue string

const (
	IssueLowEntropy   Issue = "low_entropy"
	IssuePatternMatch Issue = "pattern_match"
)

type secretPattern struct {
	name     string
	severity Severity
	re       *regexp.Regexp
}

// Known credential formats. Assignment patterns match "name=value" lines.
var secretPatterns = []secretPattern{
	{"github_token", SeverityHigh, regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{36,}`)},
	{"netlify_token", SeverityHigh, regexp.MustCompile(`nf[kp]_[A-Za-z0-9]{40,}`)},
	{"render_token", SeverityHigh, regexp.MustCompile(`rnd_[A-Za-z0-9]{32,}`)},
	{"aws_key", SeverityHigh, regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"private_key", SeverityHigh, regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+)?PRIVATE KEY-----`)},
	{
		"api_key",
		SeverityMedium,
		regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[=:]\s*["']?([A-Za-z0-9_\-]{32,})["']?`),
	},
	{
		"access_token",
		SeverityMedium,
		regexp.MustCompile(`(?i)(access[_-]?token|accesstoken)\s*[=:]\s*["']?([A-Za-z0-9_\-]{32,})["']?`),
	},
	{
		"secret_key",
		SeverityMedium,
		regexp.MustCompile(`(?i)(secret[_-]?key|secretkey)\s*[=:]\s*["']?([A-Za-z0-9_\-]{32,})["']?`),
	},
}

var ignorePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^FORGE_`),
	regexp.MustCompile(`^OPERATOR_TOKEN_HASH`),
	regexp.MustCompile(`\$\{[^}]+\}`),
	regexp.MustCompile(`<[^>]+>`),
	regexp.MustCompile(`(?i)example|sample|dummy|placeholder|changeme`),
}

var secretNameHints = []string{"key", "secret", "token", "password", "passwd", "auth", "credential"}

// highEntropyValue is the length and score above which an opaque value is treated as a credential.
const (
	highEntropyMinLength = 32
	highEntropyMinBits   = 4.5
)

// Finding is a single scanner result. It never carries the scanned value.
type Finding struct {
	Variable string   `json:"variable"`
	Source   string   `json:"source"`
	Issue    Issue    `json:"issue"`
	Severity Severity `json:"severity"`
	Pattern  string   `json:"pattern,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// Summary aggregates findings by category.
type Summary struct {
	HighRisk   int `json:"high_risk"`
	MediumRisk int `json:"medium_risk"`
	LowEntropy int `json:"low_entropy"`
}

// Report is the outcome of a scan.
type Report struct {
	TotalVars int       `json:"total_vars"`
	Findings  []Finding `json:"findings"`
	Summary   Summary   `json:"summary"`
}

// RiskLevel returns "high", "medium" or "low".
func (r *Report) RiskLevel() string {
	switch {
	case r.Summary.HighRisk > 0:
		return "high"
	case r.Summary.MediumRisk > 0 || r.Summary.LowEntropy > 0:
		return "medium"
	default:
		return "low"
	}
}

// Merge appends the findings of other into r.
func (r *Report) Merge(other *Report) {
	r.TotalVars += other.TotalVars
	r.Findings = append(r.Findings, other.Findings...)
	r.Summary.HighRisk += other.Summary.HighRisk
	r.Summary.MediumRisk += other.Summary.MediumRisk
	r.Summary.LowEntropy += other.Summary.LowEntropy
}

// MatchPattern returns the name of the first known credential format found in s.
func MatchPattern(s string) (string, Severity, bool) {
	for _, p := range secretPatterns {
		if p.re.MatchString(s) {
			return p.name, p.severity, true
		}
	}
	return "", "", false
}

// LooksLikeSecret reports whether value resembles a credential, either by a known
// format or by being long and close to uniformly random.
func LooksLikeSecret(value string) bool {
	if _, _, ok := MatchPattern(value); ok {
		return true
	}
	return len(value) >= highEntropyMinLength && Score([]byte(value)) >= highEntropyMinBits
}

func shouldIgnore(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func isSecretName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range secretNameHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// ScanVariables inspects name/value pairs. Entropy is only judged for variables whose
// name suggests a secret; known credential formats are flagged regardless of name.
func (v *Validator) ScanVariables(source string, vars map[string]string) *Report {
	report := &Report{TotalVars: len(vars), Findings: []Finding{}}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := vars[name]
		line := fmt.Sprintf("%s=%s", name, value)
		if value == "" || shouldIgnore(line) {
			continue
		}

		if pattern, severity, ok := MatchPattern(line); ok {
			report.Findings = append(report.Findings, Finding{
				Variable: name,
				Source:   source,
				Issue:    IssuePatternMatch,
				Severity: severity,
				Pattern:  pattern,
			})
			if severity == SeverityHigh {
				report.Summary.HighRisk++
			} else {
				report.Summary.MediumRisk++
			}
		}

		if !isSecretName(name) {
			continue
		}
		if reason := v.Reason([]byte(value)); reason != "" {
			report.Findings = append(report.Findings, Finding{
				Variable: name,
				Source:   source,
				Issue:    IssueLowEntropy,
				Severity: SeverityMedium,
				Reason: fmt.Sprintf(
					"%s: %.2f bits/symbol over %d bytes",
					reason,
					Score([]byte(value)),
					len(value),
				),
			})
			report.Summary.LowEntropy++
		}
	}

	return report
}
