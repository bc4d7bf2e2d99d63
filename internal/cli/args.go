package cli

import (
	"fmt"
	"strconv"
	"time"
)

// timeLayouts are tried in order. Layouts without a zone read local time.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime reads an absolute time, or a "+" prefixed duration relative to
// now such as "+36h".
func parseTime(s string, now time.Time) (time.Time, error) {
	if len(s) > 1 && s[0] == '+' {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid time %q: %v", s, err))
		}
		return now.Add(d), nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid time %q: want RFC 3339, YYYY-MM-DD[ HH:MM] or +duration", s))
}

func parseID(kind, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s id %q", kind, s))
	}
	return id, nil
}
