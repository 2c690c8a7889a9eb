package clientinfo

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// Fingerprint derives a coarse device identifier from the environment.
//
// It is a 32-bit rolling hash (h = h*31 + c) over UTF-16 code units,
// reduced to base 36. Same
// environment, same value. It collides easily and must only be used to
// correlate log lines, never for access control.
func Fingerprint(env Env) string {
	src := strings.Join([]string{
		env.UserAgent,
		env.Language,
		env.ScreenResolution,
		strconv.Itoa(env.TimezoneOffset),
		env.CanvasSignature,
	}, "|")

	var h int32
	for _, u := range utf16.Encode([]rune(src)) {
		h = h*31 + int32(u)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return strconv.FormatInt(n, 36)
}
