// Package text normalises raw document text before hashing and chunking.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	separatorRun = regexp.MustCompile(`([=\-_#*]){4,}`)
	blankRun     = regexp.MustCompile(`[ \t]{2,}`)
	newlineRun   = regexp.MustCompile(`\n{3,}`)
)

// Normalize returns a clean, whitespace-compact form of input:
// NFKC, LF line endings, no C0 control characters other than
// tab/newline/VT/FF/CR, separator runs shortened to three characters,
// collapsed blanks and at most one empty line between paragraphs.
func Normalize(input string) string {
	s := norm.NFKC.String(input)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(dropControl, s)

	s = separatorRun.ReplaceAllStringFunc(s, func(run string) string {
		return strings.Repeat(run[:1], 3)
	})
	s = blankRun.ReplaceAllString(s, " ")
	s = newlineRun.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

func dropControl(r rune) rune {
	if (r >= 0x00 && r <= 0x08) || (r >= 0x10 && r <= 0x1f) {
		return -1
	}
	return r
}
