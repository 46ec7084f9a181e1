package warmer

import (
	"fmt"
)

// InvalidSitemapError reports a top-level sitemap that is unreachable, answers
// with an error status, or is not XML.
type InvalidSitemapError struct {
	URL         string
	StatusCode  int
	ContentType string
	Reason      string
	Err         error
}

func (e *InvalidSitemapError) Error() string {
	msg := fmt.Sprintf("invalid XML sitemap %s: %s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.ContentType != "" {
		msg += fmt.Sprintf(" (content type %q)", e.ContentType)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidSitemapError) Unwrap() error {
	return e.Err
}

// LogWriteError reports a run log that exists but cannot be written. Operators
// fix it by correcting the file permissions (0644 or wider).
type LogWriteError struct {
	Path string
	Err  error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("auto-cache log file is not writable: %s: %v", e.Path, e.Err)
}

func (e *LogWriteError) Unwrap() error {
	return e.Err
}
