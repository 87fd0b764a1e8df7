// Package sanitize cleans user-provided text before it is scored or
// stored. Incident descriptions are plain text: all markup is stripped
// rather than escaped.
package sanitize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const MaxDescriptionLength = 5000

var (
	ErrNullByte    = errors.New("text contains null bytes")
	ErrTooLong     = errors.New("text exceeds maximum length")
	ErrEmptyResult = errors.New("text is empty after sanitization")
)

// Description strips markup and control characters from a raw incident
// description and normalizes whitespace. Null bytes are rejected outright
// rather than removed, since they only appear in crafted input.
func Description(raw string) (string, error) {
	if strings.ContainsRune(raw, '\x00') {
		return "", ErrNullByte
	}
	if len(raw) > MaxDescriptionLength {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(raw))
	}

	text := StripMarkup(raw)
	text = collapseWhitespace(text)

	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// StripMarkup removes HTML tags, keeping their text content.
func StripMarkup(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return strings.TrimSpace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		// The net/html parser accepts arbitrary input; an error here
		// means the reader failed, which cannot happen for a string.
		return strings.TrimSpace(raw)
	}

	// Drop script/style bodies entirely, then take the text content.
	doc.Find("script, style").Remove()
	return strings.TrimSpace(doc.Text())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidateNoNullBytes checks free-form string fields that are stored
// without further processing.
func ValidateNoNullBytes(fields ...string) error {
	for _, f := range fields {
		if strings.ContainsRune(f, '\x00') {
			return ErrNullByte
		}
	}
	return nil
}
