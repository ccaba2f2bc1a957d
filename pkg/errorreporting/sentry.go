package errorreporting

import (
	"fmt"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/pario-ai/sift/pkg/config"
)

// PII patterns to scrub from error messages.
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`),
	// API keys and secrets
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password)["\s:=]+[^\s"&]{8,}`),
	// IP addresses
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

var enabled bool

// Init configures Sentry. An empty DSN leaves reporting disabled.
func Init(cfg config.SentryConfig, release string) error {
	if cfg.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          release,
		SampleRate:       cfg.SampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("initialize sentry: %w", err)
	}
	enabled = true
	return nil
}

// beforeSend scrubs PII and credentials before an event leaves the process.
// Search queries are user content and are redacted from extras entirely.
func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
	}
	if event.Message != "" {
		event.Message = scrubPII(event.Message)
	}
	for key, value := range event.Extra {
		if key == "query" {
			event.Extra[key] = "[REDACTED]"
			continue
		}
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}
	if event.Request != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
		event.Request.QueryString = ""
	}
	return event
}

func scrubPII(text string) string {
	for _, pattern := range piiPatterns {
		text = pattern.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// CaptureErrorWithContext reports err with tags and extra data.
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]interface{}) {
	if err == nil || !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) bool {
	if !enabled {
		return true
	}
	return sentry.Flush(timeout)
}
