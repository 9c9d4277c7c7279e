package assistant

import (
	"fmt"
	"regexp"
	"strings"
)

const maxNameLength = 50

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWordChar   = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// SanitizeName normalizes a user-supplied assistant or knowledge-base
// name into the slug form the (user, name) uniqueness invariant (spec
// §3) is built on: lowercase ASCII letters, digits, and underscores,
// spaces folded to underscores, everything else stripped, collapsed and
// trimmed, capped at 50 characters. Returns "untitled" if nothing
// survives sanitization.
func SanitizeName(name string) (sanitized string, modified bool) {
	if name == "" {
		return "untitled", true
	}

	original := name
	out := strings.TrimSpace(name)
	out = strings.ToLower(out)
	out = whitespaceRun.ReplaceAllString(out, "_")
	out = nonWordChar.ReplaceAllString(out, "")
	out = underscoreRun.ReplaceAllString(out, "_")
	out = strings.Trim(out, "_")

	if len(out) > maxNameLength {
		out = strings.TrimRight(out[:maxNameLength], "_")
	}
	if out == "" {
		out = "untitled"
	}

	return out, out != original
}

// ExistsFunc reports whether a candidate name is already taken.
type ExistsFunc func(candidate string) (bool, error)

// SanitizeWithDuplicateCheck sanitizes name and, if the result collides
// per exists, appends _2, _3, ... until a free slot is found. Falls back
// to a counter cutoff of 999 the same way the original duplicate-check
// helper does, after which it gives up with an error rather than loop
// forever.
func SanitizeWithDuplicateCheck(name string, exists ExistsFunc) (string, bool, error) {
	sanitizedName, modified := SanitizeName(name)

	taken, err := exists(sanitizedName)
	if err != nil {
		return "", false, fmt.Errorf("check name availability: %w", err)
	}
	if !taken {
		return sanitizedName, modified, nil
	}

	base := sanitizedName
	maxBase := maxNameLength - 4
	if len(base) > maxBase {
		base = strings.TrimRight(base[:maxBase], "_")
	}

	for counter := 2; counter < 1000; counter++ {
		candidate := fmt.Sprintf("%s_%d", base, counter)
		taken, err := exists(candidate)
		if err != nil {
			return "", false, fmt.Errorf("check name availability for %q: %w", candidate, err)
		}
		if !taken {
			return candidate, true, nil
		}
	}

	return "", false, fmt.Errorf("could not find a free name for %q after 999 attempts", sanitizedName)
}
