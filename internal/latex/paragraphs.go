package latex

import (
	"regexp"
	"strings"
)

var (
	// atomicRe matches blocks the paragraph pass never splits: display math
	// and tables (converted later by the tabular rule).
	atomicRe = regexp.MustCompile(`(?s)` + mathOpen + `.*?` + mathClose + `|\\begin\{table\*?\}.*?\\end\{table\*?\}|\\begin\{tabular\}.*?\\end\{tabular\}`)
	// blockLineRe matches lines that already start with block-level markup.
	blockLineRe = regexp.MustCompile(`^<(?:/|h[1-6]\b|ul\b|ol\b|li\b|div\b|table\b)`)
	layoutRe    = regexp.MustCompile(`\\(?:noindent|newpage|clearpage|smallskip|medskip|bigskip|centering)\b\s*|\\[hv]space\*?\{[^}]*\}`)
)

// rewriteParagraphs turns blank-line separated text into <p> blocks. Lines
// holding headings, lists or other block markup stand on their own, display
// math is wrapped in a math container and tables are passed through intact.
func rewriteParagraphs(s string) string {
	s = layoutRe.ReplaceAllString(s, "")

	var p paragrapher
	prev := 0
	for _, loc := range atomicRe.FindAllStringIndex(s, -1) {
		p.text(s[prev:loc[0]])
		block := s[loc[0]:loc[1]]
		if strings.HasPrefix(block, mathOpen) {
			block = `<div class="latex-math">` + block + `</div>`
		}
		p.block(block)
		prev = loc[1]
	}
	p.text(s[prev:])
	p.flush()
	return p.out.String()
}

type paragrapher struct {
	out strings.Builder
	run []string
}

func (p *paragrapher) text(seg string) {
	for _, line := range strings.Split(seg, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			p.flush()
		case blockLineRe.MatchString(line):
			p.block(line)
		default:
			p.run = append(p.run, line)
		}
	}
}

func (p *paragrapher) block(html string) {
	p.flush()
	p.out.WriteString(html)
	p.out.WriteString("\n")
}

func (p *paragrapher) flush() {
	if len(p.run) == 0 {
		return
	}
	body := lineBreakRe.ReplaceAllString(strings.Join(p.run, "\n"), "<br>")
	p.out.WriteString("<p>" + body + "</p>\n")
	p.run = p.run[:0]
}
