// Package retry classifies provider error strings into a fixed kind
// vocabulary and runs operations with exponential backoff driven by
// that classification.
package retry

import "strings"

// Kind is one of the fixed error kinds the classifier recognizes.
type Kind string

const (
	KindRateLimit       Kind = "rate_limit"
	KindAuth            Kind = "auth"
	KindTimeout         Kind = "timeout"
	KindBilling         Kind = "billing"
	KindFormat          Kind = "format"
	KindContextOverflow Kind = "context_overflow"
	KindCancelled       Kind = "cancelled"
	KindToolFailure     Kind = "tool_failure"
	KindUnknown         Kind = "unknown"
)

var rateLimitPatterns = []string{"rate limit", "rate_limit", "429", "too many requests"}
var authPatterns = []string{"unauthorized", "invalid api key", "authentication", "401", "forbidden", "403"}
var timeoutPatterns = []string{"timeout", "timed out", "deadline exceeded"}
var billingPatterns = []string{"billing", "insufficient quota", "payment required", "402"}
var formatPatterns = []string{"invalid request", "malformed", "bad request", "400"}
var contextOverflowPatterns = []string{"request too large", "context length exceeded", "prompt is too long"}

// Classify pattern-matches a free-form error string, case-insensitively,
// against fixed substring lists and returns the first matching kind.
// It never returns KindContextOverflow or KindCancelled — those are
// reported by IsContextOverflow and the caller's own cancellation
// check, respectively.
func Classify(errText string) Kind {
	s := strings.ToLower(errText)

	for _, p := range rateLimitPatterns {
		if strings.Contains(s, p) {
			return KindRateLimit
		}
	}
	for _, p := range authPatterns {
		if strings.Contains(s, p) {
			return KindAuth
		}
	}
	for _, p := range billingPatterns {
		if strings.Contains(s, p) {
			return KindBilling
		}
	}
	for _, p := range timeoutPatterns {
		if strings.Contains(s, p) {
			return KindTimeout
		}
	}
	for _, p := range formatPatterns {
		if strings.Contains(s, p) {
			return KindFormat
		}
	}
	return KindUnknown
}

// IsContextOverflow reports whether errText describes a context-window
// overflow, independent of Classify's kind vocabulary: one of a set of
// phrases, or the combination of "413" and "too large" both appearing.
func IsContextOverflow(errText string) bool {
	s := strings.ToLower(errText)
	for _, p := range contextOverflowPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return strings.Contains(s, "413") && strings.Contains(s, "too large")
}

// IsFailoverWorthy reports whether a classified kind justifies trying a
// different provider or model. Every kind is failover-worthy except
// timeout, which is fatal to the run but not escalated.
func IsFailoverWorthy(k Kind) bool {
	return k != KindTimeout
}
