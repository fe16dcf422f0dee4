package mcpserver

// LatexSubsetContract describes the LaTeX subset the preview renderer
// understands. Assistants should read it before writing project files.
const LatexSubsetContract = `# texflow LaTeX Subset

The browser preview is produced without a TeX toolchain. Sources may use any
LaTeX, but only the constructs below render faithfully; everything else
passes through as text.

## Document frame

` + "```" + `latex
\documentclass{article}
\title{Paper title}
\author{First Author \and Second Author}
\date{\today}

\begin{document}
\maketitle
...
\end{document}
` + "```" + `

- Only text between ` + "`\\begin{document}`" + ` and ` + "`\\end{document}`" + ` is rendered.
  With no document environment the whole source is the body.
- ` + "`\\title`" + `, ` + "`\\author`" + ` and ` + "`\\date`" + ` form the title block. The first
  occurrence of each wins and nested braces are not supported.
- ` + "`\\today`" + ` expands only inside ` + "`\\date{}`" + `.
- ` + "`\\and`" + ` and ` + "`\\\\`" + ` in the author list become line breaks.

## Structure

| Source | Preview |
|--------|---------|
| ` + "`\\chapter{..}`" + ` | level-1 heading |
| ` + "`\\section{..}`" + ` | level-2 heading |
| ` + "`\\subsection{..}`" + ` | level-3 heading |
| ` + "`\\subsubsection{..}`" + ` | level-4 heading |
| blank line | paragraph break |
| ` + "`itemize`" + ` / ` + "`enumerate`" + ` | bulleted / numbered list, nesting allowed |
| ` + "`tabular`" + ` | HTML table; ` + "`&`" + ` separates cells, ` + "`\\\\`" + ` ends rows |

Starred section forms render like the plain ones.

## Inline styling

` + "`\\textbf`" + `, ` + "`\\textit`" + `, ` + "`\\emph`" + `, ` + "`\\underline`" + ` and ` + "`\\texttt`" + ` map to the
matching HTML emphasis. ` + "`\\ref`" + ` and ` + "`\\cite`" + ` render their keys; ` + "`\\label`" + `
is dropped. Heading arguments may contain one level of nested braces, so
styled words in headings work. ` + "`\\%`" + `, ` + "`\\&`" + `, ` + "`\\_`" + ` and ` + "`\\#`" + ` print the plain character.

## Math

- Inline: ` + "`$..$`" + ` or ` + "`\\(..\\)`" + `. Write ` + "`\\$`" + ` for a literal dollar sign.
- Display: ` + "`$$..$$`" + `, ` + "`\\[..\\]`" + `, ` + "`equation`" + `, ` + "`align`" + `, ` + "`gather`" + `,
  ` + "`displaymath`" + ` (starred forms too). Math is typeset in the browser, so keep
  it inside these delimiters.

## Files

- Source files use one of: .tex .bib .sty .cls .bst .txt
- Paths are slash separated and relative to the project root.
- Edits are checked against the checksum returned by read_file. On a
  mismatch, read the file again and re-apply the change.
`
