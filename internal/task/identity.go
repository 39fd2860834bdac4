package task

import (
	"regexp"
	"strings"
	"time"
)

// TimestampLayout is the second-resolution wall-clock format embedded in
// every run identity. Two tasks starting within the same second would
// collide, which sequential execution makes an accepted constraint.
const TimestampLayout = "2006-01-02_15-04-05"

const maxNameLen = 50

var unsafeChars = regexp.MustCompile(`[ @#$%^&*<>{}:|;'"\\/]`)

// DeriveIdentity returns the stable, filesystem-safe identifier naming
// all artifacts of one task run: "{timestamp}-{sanitized name}". The
// name is truncated to its first 50 characters, lowercased, and every
// unsafe character is replaced with an underscore.
func DeriveIdentity(name string, ts time.Time) string {
	runes := []rune(name)
	if len(runes) > maxNameLen {
		runes = runes[:maxNameLen]
	}
	id := ts.Format(TimestampLayout) + "-" + strings.ToLower(string(runes))
	return unsafeChars.ReplaceAllString(id, "_")
}
