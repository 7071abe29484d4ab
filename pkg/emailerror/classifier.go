package emailerror

import (
	"regexp"
	"strconv"
	"strings"
)

// Classifier maps SMTP reply codes and transport errors to a retry category.
type Classifier struct{}

// NewClassifier creates a new error classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Matches reply codes at the start of a server response embedded in the error
// message, e.g. "550 5.1.1 user unknown" or "smtp error: 421 try again".
var smtpCodeRegex = regexp.MustCompile(`(?:^|[:\s])([245]\d{2})[ \-:]`)

// Permanent reply codes: the recipient or request is rejected for good.
var permanentSMTPCodes = map[int]bool{
	550: true,
	551: true,
	552: true,
	553: true,
	554: true,
}

// Temporary reply codes: the server asks us to come back later.
var temporarySMTPCodes = map[int]bool{
	421: true,
	450: true,
	451: true,
	452: true,
}

// Permanent failure patterns: bad recipient or misconfigured credentials.
var permanentPatterns = []string{
	"recipient rejected",
	"recipients refused",
	"mailbox unavailable",
	"mailbox not found",
	"user unknown",
	"no such user",
	"does not exist",
	"authentication failed",
	"auth failed",
	"login failed",
	"invalid credentials",
	"5.1.1", // Mailbox does not exist
	"5.1.2", // Bad destination mailbox
	"5.1.3", // Bad destination mailbox syntax
}

// Temporary failure patterns: connection trouble and server-side throttling.
var temporaryPatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"timed out",
	"timeout",
	"deadline exceeded",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"tls handshake",
	"service unavailable",
	"try again later",
	"temporary failure",
	"greylisted",
	"greylist",
	"too many connections",
}

// Classify analyzes a delivery error and returns it with a retry category.
// Unrecognized errors are classified temporary so a flaky relay does not
// permanently fail jobs it might still accept.
func (c *Classifier) Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	code := extractSMTPCode(errStr)

	result := &ClassifiedError{
		Original: err,
		SMTPCode: code,
	}

	switch {
	case permanentSMTPCodes[code]:
		result.Category = CategoryPermanent
	case temporarySMTPCodes[code]:
		result.Category = CategoryTemporary
	case containsAny(errStr, permanentPatterns):
		result.Category = CategoryPermanent
	case containsAny(errStr, temporaryPatterns):
		result.Category = CategoryTemporary
	case code >= 500:
		// Unlisted 5xx codes stay retryable; misclassifying a transient
		// server error as permanent loses mail.
		result.Category = CategoryTemporary
	case code >= 400:
		result.Category = CategoryTemporary
	default:
		result.Category = CategoryTemporary
	}

	return result
}

// extractSMTPCode attempts to pull an SMTP reply code out of an error message.
func extractSMTPCode(errStr string) int {
	if matches := smtpCodeRegex.FindStringSubmatch(errStr); len(matches) >= 2 {
		if code, err := strconv.Atoi(matches[1]); err == nil {
			return code
		}
	}
	return 0
}

// containsAny checks if the error string contains any of the patterns (case-insensitive)
func containsAny(errStr string, patterns []string) bool {
	errLower := strings.ToLower(errStr)
	for _, pattern := range patterns {
		if strings.Contains(errLower, pattern) {
			return true
		}
	}
	return false
}
