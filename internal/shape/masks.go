package shape

import (
	"fmt"
	"strings"

	"github.com/forgecms/forge/internal/model"
)

// presetMasks are the built-in mask functions. Digit presets keep the
// last four digits and replace every other digit with *, leaving
// separators intact. The email preset keeps the first one or two
// characters of the local part plus the domain.
var presetMasks = map[string]func(interface{}) interface{}{
	"creditCard": maskDigits,
	"ssn":        maskDigits,
	"phone":      maskDigits,
	"email":      maskEmail,
}

func maskDigits(v interface{}) interface{} {
	s, ok := asString(v)
	if !ok {
		return v
	}

	out := []rune(s)
	var digitPositions []int
	for i, r := range out {
		if r >= '0' && r <= '9' {
			digitPositions = append(digitPositions, i)
		}
	}
	keep := len(digitPositions) - 4
	if keep < 0 {
		keep = 0
	}

	for _, pos := range digitPositions[:keep] {
		out[pos] = '*'
	}
	return string(out)
}

func maskEmail(v interface{}) interface{} {
	s, ok := asString(v)
	if !ok {
		return v
	}
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return s
	}
	local, domain := s[:at], s[at:]
	if strings.HasSuffix(local, "***") {
		return s
	}

	keep := 2
	if len(local) < 2 {
		keep = len(local)
	}
	return local[:keep] + "***" + domain
}

// applyCustomMask keeps the configured leading and trailing characters
// and replaces the middle. A single-character pattern repeats to fill
// the hidden span; a longer pattern is inserted verbatim.
func applyCustomMask(v interface{}, custom model.CustomMask) interface{} {
	s, ok := asString(v)
	if !ok {
		return v
	}
	if custom.VisibleStart+custom.VisibleEnd >= len(s) {
		return s
	}

	head := s[:custom.VisibleStart]
	tail := s[len(s)-custom.VisibleEnd:]
	hidden := len(s) - custom.VisibleStart - custom.VisibleEnd

	pattern := custom.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if len(pattern) == 1 {
		return head + strings.Repeat(pattern, hidden) + tail
	}
	return head + pattern + tail
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	}
	return "", false
}
