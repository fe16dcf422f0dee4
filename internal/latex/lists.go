package latex

import (
	"regexp"
	"strings"
)

var (
	listBeginRe = regexp.MustCompile(`\\begin\{(itemize|enumerate)\}`)
	listEndRe   = regexp.MustCompile(`\\end\{(itemize|enumerate)\}`)
	itemRe      = regexp.MustCompile(`\\item\b`)
	itemLabelRe = regexp.MustCompile(`^\[([^\]]*)\]\s*`)
	blankLineRe = regexp.MustCompile(`\n[ \t]*\n\s*`)
	lineBreakRe = regexp.MustCompile(`\\\\(?:\[[^\]]*\])?`)
	spaceRunRe  = regexp.MustCompile(`\s+`)
)

// rewriteLists converts itemize and enumerate environments, innermost first.
// The first \end marker always closes the innermost open list, so each pass
// pairs it with the closest preceding \begin of the same kind. An \end with
// no matching \begin is left in place.
func rewriteLists(s string) string {
	from := 0
	for from < len(s) {
		end := listEndRe.FindStringSubmatchIndex(s[from:])
		if end == nil {
			break
		}
		endStart, endStop := from+end[0], from+end[1]
		env := s[from+end[2] : from+end[3]]

		begin := lastBegin(s[:endStart], env)
		if begin == nil {
			from = endStop
			continue
		}
		list := renderList(env, s[begin[1]:endStart])
		s = s[:begin[0]] + list + s[endStop:]
		from = begin[0]
	}
	return s
}

func lastBegin(s, env string) []int {
	begins := listBeginRe.FindAllStringSubmatchIndex(s, -1)
	for i := len(begins) - 1; i >= 0; i-- {
		if s[begins[i][2]:begins[i][3]] == env {
			return begins[i]
		}
	}
	return nil
}

// renderList emits a list on a single line so the paragraph pass treats it
// as one block. Item boundaries are the \item markers; a blank line inside
// an item becomes <br>.
func renderList(env, body string) string {
	tag := "ul"
	if env == "enumerate" {
		tag = "ol"
	}
	parts := itemRe.Split(body, -1)

	var b strings.Builder
	if lead := strings.TrimSpace(parts[0]); lead != "" {
		b.WriteString(flatten(lead))
		b.WriteString(" ")
	}
	b.WriteString(`<` + tag + ` class="latex-list">`)
	for _, item := range parts[1:] {
		b.WriteString("<li>")
		b.WriteString(renderItem(item))
		b.WriteString("</li>")
	}
	b.WriteString(`</` + tag + `>`)
	return b.String()
}

func renderItem(item string) string {
	item = strings.TrimSpace(item)
	label := ""
	if m := itemLabelRe.FindStringSubmatch(item); m != nil {
		label = "<strong>" + m[1] + "</strong> "
		item = item[len(m[0]):]
	}
	return label + flatten(item)
}

// flatten puts an item on one line: blank lines and \\ become <br>, other
// newlines collapse to a space. Math and tables inside the item are copied
// untouched.
func flatten(s string) string {
	return outsideSpans(s, atomicRe, func(seg string) string {
		seg = blankLineRe.ReplaceAllString(seg, "<br>")
		seg = lineBreakRe.ReplaceAllString(seg, "<br>")
		return spaceRunRe.ReplaceAllString(seg, " ")
	})
}
