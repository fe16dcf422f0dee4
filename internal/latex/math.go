package latex

import (
	"regexp"
	"strings"
)

// displayEnvs maps display environments to the environment kept inside the
// \[ \] delimiters ("" means the content is emitted bare).
var displayEnvs = map[string]string{
	"equation":    "",
	"equation*":   "",
	"displaymath": "",
	"align":       "aligned",
	"align*":      "aligned",
	"gather":      "gathered",
	"gather*":     "gathered",
	"array":       "array",
}

// Display blocks are delimited by private-use runes while the pipeline runs
// so that a line break with spacing (\\[2pt]) is never mistaken for \[. The
// math-delimiters rule turns them back into \[ and \].
const (
	mathOpen  = "\uE001"
	mathClose = "\uE002"
)

var (
	displayBeginRe = regexp.MustCompile(`\\begin\{(equation\*?|displaymath|align\*?|gather\*?|array)\}`)
	doubleDollarRe = regexp.MustCompile(`(?s)\$\$(.+?)\$\$`)
	mathSpanRe     = regexp.MustCompile(`(?s)` + mathOpen + `.*?` + mathClose)
)

// rewriteDisplayMath swaps display environments for delimited blocks. The
// inner text is copied verbatim; an environment with no closing marker is
// left as is. Scanning resumes after each closed block, so environments
// nested inside one are not wrapped twice.
func rewriteDisplayMath(s string) string {
	s = doubleDollarRe.ReplaceAllString(s, mathOpen+`$1`+mathClose)
	s = outsideSpans(s, mathSpanRe, markBracketMath)
	return outsideSpans(s, mathSpanRe, rewriteEnvironments)
}

// markBracketMath delimits \[ ... \] written in the source. An unclosed \[
// is left as is.
func markBracketMath(s string) string {
	var b strings.Builder
	for {
		open := commandIndex(s, '[')
		if open < 0 {
			break
		}
		end := commandIndex(s[open+2:], ']')
		if end < 0 {
			break
		}
		b.WriteString(s[:open])
		b.WriteString(mathOpen + s[open+2:open+2+end] + mathClose)
		s = s[open+2+end+2:]
	}
	b.WriteString(s)
	return b.String()
}

// commandIndex returns the index of the first \c in s whose backslash starts
// a command. In \\[2pt] the bracket follows an escaped backslash (a line
// break), so it is skipped.
func commandIndex(s string, c byte) int {
	for i := 1; i < len(s); i++ {
		if s[i] != c || s[i-1] != '\\' {
			continue
		}
		n := 0
		for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
			n++
		}
		if n%2 == 1 {
			return i - 1
		}
	}
	return -1
}

func rewriteEnvironments(s string) string {
	var b strings.Builder
	rest := s
	for {
		loc := displayBeginRe.FindStringSubmatchIndex(rest)
		if loc == nil {
			break
		}
		env := rest[loc[2]:loc[3]]
		end := `\end{` + env + `}`
		closeAt := strings.Index(rest[loc[1]:], end)
		if closeAt < 0 {
			b.WriteString(rest[:loc[1]])
			rest = rest[loc[1]:]
			continue
		}
		inner := rest[loc[1] : loc[1]+closeAt]
		b.WriteString(rest[:loc[0]])
		b.WriteString(displayBlock(env, inner))
		rest = rest[loc[1]+closeAt+len(end):]
	}
	b.WriteString(rest)
	return b.String()
}

func displayBlock(env, inner string) string {
	keep := displayEnvs[env]
	if keep == "" {
		return mathOpen + inner + mathClose
	}
	return mathOpen + `\begin{` + keep + `}` + inner + `\end{` + keep + `}` + mathClose
}

// dollarSentinel stands in for an escaped \$ while inline math is rewritten.
const dollarSentinel = "\uE000"

var inlineDollarRe = regexp.MustCompile(`\$([^$]+?)\$`)

// rewriteInlineMath converts $...$ to \(...\). Display blocks produced by
// rewriteDisplayMath are skipped and \$ stays a literal dollar sign.
func rewriteInlineMath(s string) string {
	return outsideSpans(s, mathSpanRe, func(seg string) string {
		seg = strings.ReplaceAll(seg, `\$`, dollarSentinel)
		seg = inlineDollarRe.ReplaceAllString(seg, `\($1\)`)
		return strings.ReplaceAll(seg, dollarSentinel, "$")
	})
}

var mathDelimiters = strings.NewReplacer(mathOpen, `\[`, mathClose, `\]`)

func restoreMathDelimiters(s string) string {
	return mathDelimiters.Replace(s)
}

// outsideSpans applies fn to the parts of s not matched by protect.
func outsideSpans(s string, protect *regexp.Regexp, fn func(string) string) string {
	locs := protect.FindAllStringIndex(s, -1)
	if locs == nil {
		return fn(s)
	}
	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(fn(s[prev:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		prev = loc[1]
	}
	b.WriteString(fn(s[prev:]))
	return b.String()
}
