package wire

import (
	"strings"
	"time"
)

const (
	// DisplayDateLayout is how dates are typed into the form.
	DisplayDateLayout = "02/01/2006"
	// BackendDateLayout is the only layout the backend accepts.
	BackendDateLayout = "2006-01-02"
)

// ParseDate accepts DD/MM/YYYY or YYYY-MM-DD. The second return is false
// for empty, malformed or calendar-invalid input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range []string{BackendDateLayout, DisplayDateLayout} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// FormatDateForBackend normalizes s to YYYY-MM-DD, or nil when s does not
// parse.
func FormatDateForBackend(s string) *string {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}

	out := t.Format(BackendDateLayout)
	return &out
}
