package latex

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
)

// elements parses an HTML fragment and returns every element named tag.
func elements(t *testing.T, fragment, tag string) []*html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func TestExtract_Empty(t *testing.T) {
	md := Extract("")
	want := Metadata{Title: DefaultTitle, Author: "", Date: ""}
	if md != want {
		t.Errorf("Extract(\"\") = %+v, want %+v", md, want)
	}
}

func TestExtract_AllFields(t *testing.T) {
	src := `\title{On Trees}\author{Ada \and Grace}\date{May 2024}`
	md := Extract(src)
	if md.Title != "On Trees" {
		t.Errorf("title = %q", md.Title)
	}
	if md.Author != "Ada, Grace" {
		t.Errorf("author = %q", md.Author)
	}
	if md.Date != "May 2024" {
		t.Errorf("date = %q", md.Date)
	}
}

func TestExtract_FieldsIndependent(t *testing.T) {
	md := Extract(`\author{Only Author}`)
	if md.Title != DefaultTitle {
		t.Errorf("title = %q, want default", md.Title)
	}
	if md.Author != "Only Author" {
		t.Errorf("author = %q", md.Author)
	}
}

func TestExtract_FirstOccurrenceWins(t *testing.T) {
	md := Extract(`\title{First}\title{Second}`)
	if md.Title != "First" {
		t.Errorf("title = %q, want First", md.Title)
	}
}

func TestExtract_IgnoresComments(t *testing.T) {
	src := "% \\title{Old draft}\n\\title{Real}\n%\\author{Ghost}\n\\date{2024}% revised"
	md := Extract(src)
	want := Metadata{Title: "Real", Date: "2024"}
	if md != want {
		t.Errorf("Extract = %+v, want %+v", md, want)
	}
}

func TestExtract_TodayUsesClock(t *testing.T) {
	e := Extractor{Now: func() time.Time {
		return time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	}}
	md := e.Extract(`\date{\today}`)
	if md.Date != "March 5, 2024" {
		t.Errorf("date = %q", md.Date)
	}
}

func TestExtract_CompileModeAuthorDefault(t *testing.T) {
	md := Extractor{AuthorDefault: DefaultAuthorCompile}.Extract(`\title{X}`)
	if md.Author != DefaultAuthorCompile {
		t.Errorf("author = %q, want %q", md.Author, DefaultAuthorCompile)
	}
}

func TestBody(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"markers", `\documentclass{article}\begin{document}Hello\end{document}trailer`, "Hello"},
		{"no markers", "just text", "just text"},
		{"begin only", `pre\begin{document}rest`, "rest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Body(tt.src); got != tt.want {
				t.Errorf("Body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewrite_SectionIsHeading(t *testing.T) {
	out := Rewrite(`\section{Intro}`)
	hs := elements(t, out, "h2")
	if len(hs) != 1 || textOf(hs[0]) != "Intro" {
		t.Fatalf("expected one h2 with Intro, got %q", out)
	}
	if len(elements(t, out, "p")) != 0 {
		t.Errorf("heading wrapped in a paragraph: %q", out)
	}
}

func TestRewrite_HeadingLevels(t *testing.T) {
	tests := []struct{ src, tag string }{
		{`\chapter{C}`, "h1"},
		{`\section*{S}`, "h2"},
		{`\subsection{Sub}`, "h3"},
		{`\subsubsection{Subsub}`, "h4"},
	}
	for _, tt := range tests {
		if got := elements(t, Rewrite(tt.src), tt.tag); len(got) != 1 {
			t.Errorf("%s: expected one <%s>", tt.src, tt.tag)
		}
	}
}

func TestRewrite_ItemizeTwoItems(t *testing.T) {
	out := Rewrite(`\begin{itemize}\item A\item B\end{itemize}`)
	uls := elements(t, out, "ul")
	if len(uls) != 1 {
		t.Fatalf("expected one ul, got %q", out)
	}
	items := elements(t, out, "li")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d in %q", len(items), out)
	}
	if textOf(items[0]) != "A" || textOf(items[1]) != "B" {
		t.Errorf("items = %q, %q", textOf(items[0]), textOf(items[1]))
	}
}

func TestRewrite_NestedLists(t *testing.T) {
	src := "\\begin{enumerate}\n\\item outer\n\\begin{itemize}\n\\item inner\n\\end{itemize}\n\\item last\n\\end{enumerate}"
	out := Rewrite(src)
	if len(elements(t, out, "ol")) != 1 || len(elements(t, out, "ul")) != 1 {
		t.Fatalf("unexpected list structure: %q", out)
	}
	if n := len(elements(t, out, "li")); n != 3 {
		t.Errorf("li count = %d, want 3", n)
	}
	if strings.Contains(out, `\item`) || strings.Contains(out, `\begin`) {
		t.Errorf("leftover markup: %q", out)
	}
}

func TestRewrite_ItemLabel(t *testing.T) {
	out := Rewrite(`\begin{itemize}\item[Note] text\end{itemize}`)
	if !strings.Contains(out, "<li><strong>Note</strong> text</li>") {
		t.Errorf("label not rendered: %q", out)
	}
}

func TestRewrite_DisplayMath(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"equation", `\begin{equation}x = 1\end{equation}`, `\[x = 1\]`},
		{"starred", `\begin{equation*}y\end{equation*}`, `\[y\]`},
		{"align", `\begin{align}a &= b \\ c &= d\end{align}`, `\[\begin{aligned}a &= b \\ c &= d\end{aligned}\]`},
		{"double dollar", `$$e^x$$`, `\[e^x\]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := Rewrite(tt.src); !strings.Contains(out, tt.want) {
				t.Errorf("Rewrite = %q, want it to contain %q", out, tt.want)
			}
		})
	}
}

func TestRewrite_SpacedLineBreakIsNotMath(t *testing.T) {
	out := Rewrite("First line\\\\[2pt]\nSecond with $x$.\n\n\\begin{equation}y\\end{equation}")
	ps := elements(t, out, "p")
	if len(ps) != 1 {
		t.Fatalf("paragraphs = %d, want 1: %q", len(ps), out)
	}
	if !strings.Contains(out, `<br>`) || !strings.Contains(out, `Second with \(x\).`) {
		t.Errorf("line break or inline math lost: %q", out)
	}
	divs := elements(t, out, "div")
	if len(divs) != 1 || textOf(divs[0]) != `\[y\]` {
		t.Errorf("math container = %q", out)
	}
	if strings.Contains(out, `\</p>`) || strings.Contains(out, "2pt") {
		t.Errorf("line break residue: %q", out)
	}
}

func TestRewrite_BracketMath(t *testing.T) {
	tests := []struct{ name, src, want string }{
		{"single", `\[a+b\]`, `\[a+b\]`},
		{"adjacent", `\[a\]\[b\]`, `\[a\]</div>`},
		{"after line break", "x\\\\\\[c\\]", `\[c\]`},
		{"array inside", `\[\begin{array}{c}1\end{array}\]`, `\[\begin{array}{c}1\end{array}\]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Rewrite(tt.src)
			if !strings.Contains(out, tt.want) {
				t.Errorf("Rewrite(%q) = %q, want it to contain %q", tt.src, out, tt.want)
			}
			if strings.ContainsAny(out, mathOpen+mathClose) {
				t.Errorf("internal delimiters leaked: %q", out)
			}
		})
	}
	if out := Rewrite(`\[a\]\[b\]`); strings.Count(out, `class="latex-math"`) != 2 {
		t.Errorf("adjacent blocks = %q", out)
	}
}

func TestRewrite_NestedArrayNotWrappedTwice(t *testing.T) {
	out := Rewrite(`\begin{equation}\begin{array}{cc}1 & 2\end{array}\end{equation}`)
	if strings.Count(out, `\[`) != 1 {
		t.Errorf("expected a single display block, got %q", out)
	}
}

func TestRewrite_UnclosedMathPassesThrough(t *testing.T) {
	out := Rewrite(`\begin{equation} x + y`)
	if !strings.Contains(out, `\begin{equation}`) {
		t.Errorf("unclosed environment should be left as is: %q", out)
	}
}

func TestRewrite_InlineMath(t *testing.T) {
	out := Rewrite(`Cost \$5 and $a+b$.`)
	if !strings.Contains(out, `\(a+b\)`) {
		t.Errorf("inline math not converted: %q", out)
	}
	if !strings.Contains(out, "Cost $5") {
		t.Errorf("escaped dollar lost: %q", out)
	}
}

func TestRewrite_Styling(t *testing.T) {
	tests := []struct{ src, want string }{
		{`\textbf{b}`, "<strong>b</strong>"},
		{`\textit{i}`, "<em>i</em>"},
		{`\emph{e}`, "<em>e</em>"},
		{`\underline{u}`, "<u>u</u>"},
		{`\textbf{\emph{x}}`, "<strong><em>x</em></strong>"},
	}
	for _, tt := range tests {
		if out := Rewrite(tt.src); !strings.Contains(out, tt.want) {
			t.Errorf("Rewrite(%q) = %q, want %q", tt.src, out, tt.want)
		}
	}
}

func TestRewrite_HeadingWithNestedStyling(t *testing.T) {
	out := Rewrite(`\section{The \emph{fast} method}`)
	want := `<h2 class="latex-section">The <em>fast</em> method</h2>`
	if !strings.Contains(out, want) {
		t.Errorf("Rewrite = %q, want %q", out, want)
	}
}

func TestRewrite_EscapedSpecials(t *testing.T) {
	out := Rewrite(`Save 50\% and R\&D, a\_b \#1 with $a\_1$`)
	ps := elements(t, out, "p")
	if len(ps) != 1 {
		t.Fatalf("paragraphs = %q", out)
	}
	if got := textOf(ps[0]); got != `Save 50% and R&D, a_b #1 with \(a\_1\)` {
		t.Errorf("text = %q", got)
	}
}

func TestRewrite_RefAndCite(t *testing.T) {
	out := Rewrite(`see \ref{fig:one} and \cite{knuth84}\label{here}`)
	if !strings.Contains(out, `<span class="latex-ref">fig:one</span>`) {
		t.Errorf("ref: %q", out)
	}
	if !strings.Contains(out, `<span class="latex-cite">[knuth84]</span>`) {
		t.Errorf("cite: %q", out)
	}
	if strings.Contains(out, "label") {
		t.Errorf("label should be removed: %q", out)
	}
}

func TestRewrite_Paragraphs(t *testing.T) {
	out := Rewrite("First para\nline two\n\nSecond")
	ps := elements(t, out, "p")
	if len(ps) != 2 {
		t.Fatalf("paragraphs = %d, want 2: %q", len(ps), out)
	}
	if !strings.HasPrefix(textOf(ps[0]), "First para") || textOf(ps[1]) != "Second" {
		t.Errorf("unexpected paragraphs: %q", out)
	}
}

func TestRewrite_ParagraphsKeepMathIntact(t *testing.T) {
	src := "Before\n\\begin{align}\na &= 1 \\\\\n\nb &= 2\n\\end{align}\nAfter"
	out := Rewrite(src)
	if !strings.Contains(out, "a &= 1 \\\\\n\nb &= 2") {
		t.Errorf("math block was split: %q", out)
	}
	divs := elements(t, out, "div")
	if len(divs) != 1 {
		t.Errorf("expected one math container, got %q", out)
	}
}

func TestRewrite_Tabular(t *testing.T) {
	src := "\\begin{tabular}{|l|c|}\n\\hline\na & b \\\\\nc \\& d & e \\\\\n\\hline\n\\end{tabular}"
	out := Rewrite(src)
	rows := elements(t, out, "tr")
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2: %q", len(rows), out)
	}
	cells := elements(t, out, "td")
	if len(cells) != 4 {
		t.Fatalf("cells = %d, want 4: %q", len(cells), out)
	}
	if textOf(cells[2]) != "c & d" {
		t.Errorf("escaped ampersand cell = %q", textOf(cells[2]))
	}
	if strings.Contains(out, "hline") {
		t.Errorf("rule commands should be dropped: %q", out)
	}
}

func TestRewrite_TableFloatCaption(t *testing.T) {
	src := "\\begin{table}[h]\n\\centering\n\\begin{tabular}{ll}\nx & y \\\\\n\\end{tabular}\n\\caption{Results}\n\\end{table}"
	out := Rewrite(src)
	if !strings.Contains(out, `<div class="latex-caption">Results</div>`) {
		t.Errorf("caption: %q", out)
	}
	if len(elements(t, out, "table")) != 1 {
		t.Errorf("expected one table: %q", out)
	}
	if strings.Contains(out, "centering") {
		t.Errorf("layout command left behind: %q", out)
	}
}

func TestParseTabular_Multicolumn(t *testing.T) {
	rows := parseTabular(`\multicolumn{2}{c}{Head} \\ a & b \\`)
	if len(rows) != 2 || len(rows[0]) != 1 || len(rows[1]) != 2 {
		t.Fatalf("rows = %#v", rows)
	}
	if got := renderCell(rows[0][0]); got != `<td colspan="2">Head</td>` {
		t.Errorf("cell = %q", got)
	}
}

func TestRewrite_CommentsAndMarkup(t *testing.T) {
	out := Rewrite("visible % hidden\n50\\% off <script>x</script>")
	if strings.Contains(out, "hidden") {
		t.Errorf("comment kept: %q", out)
	}
	if !strings.Contains(out, "50% off") {
		t.Errorf("escaped percent lost: %q", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("raw markup not escaped: %q", out)
	}
}

func TestRewrite_MaketitleStripped(t *testing.T) {
	if out := Rewrite(`\maketitle Hello`); strings.Contains(out, "maketitle") {
		t.Errorf("maketitle kept: %q", out)
	}
}

func TestRewrite_NeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"{{{{",
		"}}}}",
		`\begin{itemize}`,
		`\end{itemize}\end{enumerate}`,
		`\begin{itemize}\begin{enumerate}\end{itemize}`,
		`$`,
		`$$`,
		`\begin{tabular}{`,
		`\begin{tabular}{ll}&&&\\\\\\\end{tabular}`,
		`\textbf{\textbf{\textbf{\textbf{\textbf{\textbf{\textbf{\textbf{\textbf{x}}}}}}}}}`,
		"\xff\xfe\x00\x01",
		strings.Repeat(`\item `, 500),
	}
	r := rand.New(rand.NewPCG(1, 2))
	for range 200 {
		buf := make([]byte, r.IntN(256))
		for i := range buf {
			buf[i] = byte(r.IntN(256))
		}
		inputs = append(inputs, string(buf))
	}
	for _, in := range inputs {
		func() {
			defer func() {
				if p := recover(); p != nil {
					t.Fatalf("Rewrite(%q) panicked: %v", in, p)
				}
			}()
			_ = Rewrite(in)
			_ = Preview(in)
		}()
	}
}

func FuzzRewrite(f *testing.F) {
	f.Add(`\section{A}\begin{itemize}\item x\end{itemize}`)
	f.Add(`\begin{tabular}{ll}a & b \\ c & d\end{tabular}`)
	f.Add(`$x$ and $$y$$`)
	f.Fuzz(func(t *testing.T, src string) {
		_ = Rewrite(src)
	})
}

func TestRules_Order(t *testing.T) {
	index := map[string]int{}
	for i, r := range Rules() {
		index[r.Name] = i
	}
	before := [][2]string{
		{"maketitle", "section"},
		{"section", "paragraphs"},
		{"display-math", "inline-math"},
		{"inline-math", "lists"},
		{"lists", "styling"},
		{"styling", "ref"},
		{"ref", "paragraphs"},
		{"paragraphs", "tabular"},
		{"tabular", "specials"},
		{"specials", "math-delimiters"},
	}
	for _, pair := range before {
		if index[pair[0]] >= index[pair[1]] {
			t.Errorf("rule %q must run before %q", pair[0], pair[1])
		}
	}
}

func TestWrap(t *testing.T) {
	out := Wrap(Metadata{Title: "T <1>", Date: "today"}, "<p>body</p>")
	if !strings.Contains(out, Banner) {
		t.Error("banner missing")
	}
	if !strings.Contains(out, `<h1 class="latex-title">T &lt;1&gt;</h1>`) {
		t.Errorf("title not escaped in title block: %q", out)
	}
	if strings.Contains(out, "latex-author") {
		t.Error("empty author should be omitted")
	}
	if !strings.Contains(out, `<div class="latex-date">today</div>`) {
		t.Error("date missing")
	}
	if !strings.Contains(out, "<p>body</p>") {
		t.Error("body not embedded verbatim")
	}
}

func TestPreview_FullDocument(t *testing.T) {
	src := `\documentclass{article}
\title{Report}
\author{Kim}
\begin{document}
\maketitle
\section{Intro}
Hello \textbf{world}.
\end{document}`
	out := NewRenderer(DefaultAuthorCompile).Render(src)
	for _, want := range []string{
		`<h1 class="latex-title">Report</h1>`,
		`<div class="latex-author">Kim</div>`,
		`<h2 class="latex-section">Intro</h2>`,
		`<p>Hello <strong>world</strong>.</p>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "documentclass") {
		t.Error("preamble leaked into body")
	}
}
