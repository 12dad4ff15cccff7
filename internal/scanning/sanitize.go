package scanning

import (
	"regexp"
	"strings"
)

var (
	openFenceRe  = regexp.MustCompile("(?i)```(?:json|javascript)\\s*")
	trailFenceRe = regexp.MustCompile("```\\s*$")
	loneFenceRe  = regexp.MustCompile("(?m)^```$")
)

// Sanitize strips markdown code fences the model wraps around its answer.
// Removing a fence can expose another one, so passes repeat until nothing changes.
func Sanitize(raw string) string {
	text := raw
	for {
		next := sanitizePass(text)
		if next == text {
			return next
		}
		text = next
	}
}

func sanitizePass(text string) string {
	text = openFenceRe.ReplaceAllString(text, "")
	text = trailFenceRe.ReplaceAllString(text, "")
	text = loneFenceRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
