package latex

import (
	"bytes"
	"html/template"
	"time"
)

// Banner explains to the reader that the page is not a real TeX build.
const Banner = "Preview rendered without a LaTeX toolchain. Layout, numbering and references are approximate."

var shellTpl = template.Must(template.New("preview").Parse(`<div class="latex-preview">
<div class="latex-preview-banner">{{.Banner}}</div>
<header class="latex-titleblock">
<h1 class="latex-title">{{.Meta.Title}}</h1>
{{- if .Meta.Author}}
<div class="latex-author">{{.Meta.Author}}</div>
{{- end}}
{{- if .Meta.Date}}
<div class="latex-date">{{.Meta.Date}}</div>
{{- end}}
</header>
<article class="latex-body">
{{.Body}}
</article>
</div>`))

type shellData struct {
	Banner string
	Meta   Metadata
	Body   template.HTML
}

// Wrap places a rendered body inside the fixed preview layout: banner,
// title block, then the body. Empty author and date are left out of the
// title block.
func Wrap(md Metadata, body string) string {
	var buf bytes.Buffer
	err := shellTpl.Execute(&buf, shellData{
		Banner: Banner,
		Meta:   md,
		Body:   template.HTML(body), //nolint:gosec // body is produced by Rewrite
	})
	if err != nil {
		return body
	}
	return buf.String()
}

// Renderer bundles the extractor settings used to build a full preview.
type Renderer struct {
	Extractor Extractor
}

// NewRenderer returns a renderer using authorDefault when \author is absent.
func NewRenderer(authorDefault string) *Renderer {
	return &Renderer{Extractor: Extractor{AuthorDefault: authorDefault, Now: time.Now}}
}

// Render converts a full LaTeX source into the wrapped HTML preview.
func (r *Renderer) Render(src string) string {
	return Wrap(r.Extractor.Extract(src), Rewrite(Body(src)))
}

// Preview renders src with editor-mode defaults.
func Preview(src string) string {
	return NewRenderer(DefaultAuthorEditor).Render(src)
}
