package retry

import (
	"errors"
	"strings"

	awsretry "github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"
	"github.com/tmc/langchaingo/llms"
)

// ThrottlingCode is the error code AWS services use for rate limiting.
const ThrottlingCode = "ThrottlingException"

// Throttler is implemented by errors that know they are a rate-limit signal.
type Throttler interface {
	Throttled() bool
}

// IsThrottling reports whether err looks like upstream rate limiting.
//
// Three checks are OR-combined with no precedence: a structured code on err
// itself, a structured code on any wrapped cause, and a match on the error
// text as a catch-all for providers that only report a message.
func IsThrottling(err error) bool {
	if err == nil {
		return false
	}
	return hasThrottlingCode(err) || causeHasThrottlingCode(err) || textLooksThrottled(err.Error())
}

func hasThrottlingCode(err error) bool {
	if t, ok := err.(Throttler); ok && t.Throttled() {
		return true
	}
	if apiErr, ok := err.(smithy.APIError); ok && apiErr.ErrorCode() == ThrottlingCode {
		return true
	}
	if llmErr, ok := err.(*llms.Error); ok && llmErr.Code == llms.ErrCodeRateLimit {
		return true
	}
	return false
}

func causeHasThrottlingCode(err error) bool {
	var maxAttempts *awsretry.MaxAttemptsError
	if errors.As(err, &maxAttempts) {
		return true
	}
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		if hasThrottlingCode(cause) {
			return true
		}
	}
	if llms.IsRateLimitError(err) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == ThrottlingCode
}

func textLooksThrottled(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(msg, ThrottlingCode) ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "status code: 429") ||
		strings.Contains(msg, "reached max retries")
}
