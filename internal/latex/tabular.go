package latex

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	tableFloatRe  = regexp.MustCompile(`(?s)\\begin\{table\*?\}(?:\[[^\]]*\])?(.*?)\\end\{table\*?\}`)
	captionRe     = regexp.MustCompile(`\\caption\{([^}]*)\}`)
	tabularRe     = regexp.MustCompile(`(?s)\\begin\{tabular\}(?:\[[^\]]*\])?\{(?:[^{}]|\{[^{}]*\})*\}(.*?)\\end\{tabular\}`)
	tableRuleRe   = regexp.MustCompile(`\\(?:hline|toprule|midrule|bottomrule)\b|\\cline\{[^}]*\}`)
	multicolumnRe = regexp.MustCompile(`(?s)^\\multicolumn\{(\d+)\}\{[^}]*\}\{(.*)\}$`)
)

// rewriteTables converts table floats and tabular environments. The column
// layout argument is accepted and ignored.
func rewriteTables(s string) string {
	s = tableFloatRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := tableFloatRe.FindStringSubmatch(m)[1]
		inner = captionRe.ReplaceAllString(inner, `<div class="latex-caption">$1</div>`)
		return `<div class="latex-table-float">` + strings.TrimSpace(inner) + `</div>`
	})
	return tabularRe.ReplaceAllStringFunc(s, func(m string) string {
		return renderTable(parseTabular(tabularRe.FindStringSubmatch(m)[1]))
	})
}

// parseTabular splits a tabular body into rows and cells in one pass: rows
// end at \\, cells are separated by unescaped &. Horizontal rules and empty
// rows are dropped.
func parseTabular(body string) [][]string {
	body = tableRuleRe.ReplaceAllString(body, "")
	var rows [][]string
	for _, row := range lineBreakRe.Split(body, -1) {
		row = strings.TrimSpace(row)
		if row == "" {
			continue
		}
		rows = append(rows, splitCells(row))
	}
	return rows
}

// splitCells splits on & while keeping \& and the entities produced by the
// markup escaping rule.
func splitCells(row string) []string {
	var cells []string
	start := 0
	for i := 0; i < len(row); i++ {
		if row[i] != '&' {
			continue
		}
		if i > 0 && row[i-1] == '\\' {
			continue
		}
		if strings.HasPrefix(row[i:], "&lt;") || strings.HasPrefix(row[i:], "&gt;") {
			continue
		}
		cells = append(cells, strings.TrimSpace(row[start:i]))
		start = i + 1
	}
	return append(cells, strings.TrimSpace(row[start:]))
}

func renderTable(rows [][]string) string {
	var b strings.Builder
	b.WriteString(`<table class="latex-table"><tbody>`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			b.WriteString(renderCell(cell))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func renderCell(cell string) string {
	cell = strings.ReplaceAll(cell, `\&`, "&amp;")
	if m := multicolumnRe.FindStringSubmatch(cell); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
			return `<td colspan="` + m[1] + `">` + strings.TrimSpace(m[2]) + "</td>"
		}
		cell = m[2]
	}
	return "<td>" + cell + "</td>"
}
