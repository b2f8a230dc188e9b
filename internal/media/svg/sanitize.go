// Package svg strips active content from uploaded svg avatars.
package svg

import (
	"bytes"
	"errors"
	"regexp"
)

var ErrNotSVG = errors.New("not an svg document")

var (
	scriptElement   = regexp.MustCompile(`(?is)<\s*script\b.*?(<\s*/\s*script\s*>|/\s*>)`)
	foreignObject   = regexp.MustCompile(`(?is)<\s*foreignObject\b.*?<\s*/\s*foreignObject\s*>`)
	eventAttribute  = regexp.MustCompile(`(?is)\s+on[a-z]+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`)
	scriptReference = regexp.MustCompile(`(?is)\s+(xlink:)?href\s*=\s*("\s*javascript:[^"]*"|'\s*javascript:[^']*')`)
)

// Sanitize removes scripts, embedded html and event handler attributes.
func Sanitize(input []byte) ([]byte, error) {
	if !bytes.Contains(bytes.ToLower(input), []byte("<svg")) {
		return nil, ErrNotSVG
	}

	clean := scriptElement.ReplaceAll(input, nil)
	clean = foreignObject.ReplaceAll(clean, nil)
	clean = eventAttribute.ReplaceAll(clean, nil)
	clean = scriptReference.ReplaceAll(clean, nil)

	return clean, nil
}
