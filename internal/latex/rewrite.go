package latex

import (
	"regexp"
	"strings"
)

// Rule is one step of the rewrite pipeline. Rules see the whole document
// produced by the previous rule.
type Rule struct {
	Name  string
	Apply func(string) string
}

// regexRule builds a rule that substitutes every match of pattern.
func regexRule(name, pattern, repl string) Rule {
	re := regexp.MustCompile(pattern)
	return Rule{Name: name, Apply: func(s string) string {
		return re.ReplaceAllString(s, repl)
	}}
}

// braced captures a {group} allowing one level of nested braces, as in
// \section{The \emph{fast} method}.
const braced = `\{((?:[^{}]|\{[^{}]*\})*)\}`

// pipeline is the ordered rule list. Headings come before the paragraph
// pass and display math before inline math ($$ is not two $).
var pipeline = []Rule{
	{Name: "comments", Apply: stripComments},
	{Name: "markup", Apply: escapeMarkup},
	regexRule("maketitle", `\\maketitle\b\s*`, ""),
	regexRule("chapter", `\\chapter\*?`+braced, `<h1 class="latex-chapter">$1</h1>`),
	regexRule("section", `\\section\*?`+braced, `<h2 class="latex-section">$1</h2>`),
	regexRule("subsection", `\\subsection\*?`+braced, `<h3 class="latex-subsection">$1</h3>`),
	regexRule("subsubsection", `\\subsubsection\*?`+braced, `<h4 class="latex-subsubsection">$1</h4>`),
	{Name: "display-math", Apply: rewriteDisplayMath},
	{Name: "inline-math", Apply: rewriteInlineMath},
	{Name: "lists", Apply: rewriteLists},
	{Name: "styling", Apply: rewriteStyling},
	regexRule("label", `\\label\{[^}]*\}`, ""),
	regexRule("ref", `\\(?:eq)?ref\{([^}]*)\}`, `<span class="latex-ref">$1</span>`),
	regexRule("cite", `\\cite\{([^}]*)\}`, `<span class="latex-cite">[$1]</span>`),
	{Name: "paragraphs", Apply: rewriteParagraphs},
	{Name: "tabular", Apply: rewriteTables},
	{Name: "specials", Apply: unescapeSpecials},
	{Name: "math-delimiters", Apply: restoreMathDelimiters},
}

// Rules returns a copy of the rewrite pipeline in application order.
func Rules() []Rule {
	out := make([]Rule, len(pipeline))
	copy(out, pipeline)
	return out
}

// Rewrite converts a LaTeX document body into HTML. Unsupported or malformed
// constructs pass through partially converted; Rewrite never fails.
func Rewrite(body string) string {
	out := body
	for _, r := range pipeline {
		out = applySafely(r, out)
	}
	return strings.TrimSpace(out)
}

// applySafely runs a rule and keeps its input if the rule panics, so one
// faulty step cannot take the whole preview down.
func applySafely(r Rule, in string) (out string) {
	defer func() {
		if recover() != nil {
			out = in
		}
	}()
	return r.Apply(in)
}

var (
	beginDocRe = regexp.MustCompile(`\\begin\{document\}`)
	endDocRe   = regexp.MustCompile(`\\end\{document\}`)
)

// Body returns the text between \begin{document} and \end{document}. A
// missing begin marker means the whole source is the body; a missing end
// marker runs the body to the end of the source.
func Body(src string) string {
	body := src
	if loc := beginDocRe.FindStringIndex(body); loc != nil {
		body = body[loc[1]:]
	}
	if loc := endDocRe.FindStringIndex(body); loc != nil {
		body = body[:loc[0]]
	}
	return body
}

var commentRe = regexp.MustCompile(`(?m)(^|[^\\])%.*$`)

func stripComments(s string) string {
	return commentRe.ReplaceAllString(s, "$1")
}

var (
	specials = strings.NewReplacer(`\%`, "%", `\&`, "&amp;", `\_`, "_", `\#`, "#")
	// mathTextRe protects display blocks and inline math, where the escapes
	// belong to the math renderer.
	mathTextRe = regexp.MustCompile(`(?s)` + mathOpen + `.*?` + mathClose + `|\\\(.*?\\\)`)
)

// unescapeSpecials prints \% \& \_ and \# as the characters they stand for.
func unescapeSpecials(s string) string {
	return outsideSpans(s, mathTextRe, specials.Replace)
}

func escapeMarkup(s string) string {
	return strings.NewReplacer("<", "&lt;", ">", "&gt;").Replace(s)
}

var (
	styleRules = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`\\textbf\{([^{}]*)\}`), `<strong>$1</strong>`},
		{regexp.MustCompile(`\\textit\{([^{}]*)\}`), `<em>$1</em>`},
		{regexp.MustCompile(`\\emph\{([^{}]*)\}`), `<em>$1</em>`},
		{regexp.MustCompile(`\\underline\{([^{}]*)\}`), `<u>$1</u>`},
		{regexp.MustCompile(`\\texttt\{([^{}]*)\}`), `<code>$1</code>`},
	}
	// maxStyleDepth bounds how deep nested styling is resolved.
	maxStyleDepth = 8
)

// rewriteStyling resolves styling commands innermost first, so
// \textbf{\emph{x}} becomes <strong><em>x</em></strong>.
func rewriteStyling(s string) string {
	for range maxStyleDepth {
		prev := s
		for _, r := range styleRules {
			s = r.re.ReplaceAllString(s, r.repl)
		}
		if s == prev {
			break
		}
	}
	return s
}
