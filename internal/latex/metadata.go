// Package latex turns LaTeX sources into an HTML preview without a TeX
// toolchain. The conversion is best effort: every input yields some HTML and
// nothing in this package returns an error.
package latex

import (
	"regexp"
	"strings"
	"time"
)

// Defaults applied when a metadata field is missing.
const (
	DefaultTitle         = "Untitled Document"
	DefaultAuthorEditor  = ""
	DefaultAuthorCompile = "Unknown Author"
)

// DateLayout is the format used when \today is expanded.
const DateLayout = "January 2, 2006"

var (
	titleRe  = regexp.MustCompile(`\\title\{([^}]*)\}`)
	authorRe = regexp.MustCompile(`\\author\{([^}]*)\}`)
	dateRe   = regexp.MustCompile(`\\date\{([^}]*)\}`)
	andRe    = regexp.MustCompile(`\s*\\and\s*`)
	breakRe  = regexp.MustCompile(`\s*\\\\\s*`)
)

// Metadata is the document information rendered in the title block.
type Metadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Date   string `json:"date"`
}

// Extractor pulls title, author and date out of a LaTeX source.
//
// Each field is matched independently (first occurrence, no nested braces).
// A \date{\today} expands to the clock's current date, which makes the
// result depend on when it is generated and not only on the input.
type Extractor struct {
	// AuthorDefault is used when \author is absent.
	AuthorDefault string
	// Now is the clock used for \today. Defaults to time.Now.
	Now func() time.Time
}

// Extract runs the editor-mode extractor: a missing author stays empty.
func Extract(src string) Metadata {
	return Extractor{AuthorDefault: DefaultAuthorEditor}.Extract(src)
}

// Extract returns the metadata found in src with per-field defaults.
// Commented-out lines are ignored.
func (e Extractor) Extract(src string) Metadata {
	src = stripComments(src)
	md := Metadata{
		Title:  DefaultTitle,
		Author: e.AuthorDefault,
	}
	if v, ok := firstGroup(titleRe, src); ok && v != "" {
		md.Title = v
	}
	if v, ok := firstGroup(authorRe, src); ok && v != "" {
		md.Author = andRe.ReplaceAllString(v, ", ")
	}
	if v, ok := firstGroup(dateRe, src); ok {
		md.Date = e.expandToday(v)
	}
	return md
}

func (e Extractor) expandToday(v string) string {
	if !strings.Contains(v, `\today`) {
		return v
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return strings.TrimSpace(strings.ReplaceAll(v, `\today`, now().Format(DateLayout)))
}

func firstGroup(re *regexp.Regexp, src string) (string, bool) {
	m := re.FindStringSubmatch(src)
	if m == nil {
		return "", false
	}
	v := breakRe.ReplaceAllString(m[1], " ")
	return strings.TrimSpace(v), true
}
