// Package artifact renders merged agent output and writes it to disk.
package artifact

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Format selects the document rendering.
type Format string

const (
	FormatHTML Format = "html"
	FormatText Format = "text"
)

const DefaultTitle = "AI Crew Output"

// Section is one agent's contribution to the merged document.
type Section struct {
	Agent  string
	Model  string
	Output string
	Digest string
}

// Options configure an Assembler.
type Options struct {
	Format Format
	Title  string
}

// Assembler renders ordered sections into a single document. Rendering is a
// pure function of its input: no timestamps, no environment.
type Assembler struct {
	format Format
	title  string
	tmpl   *template.Template
}

var htmlTemplate = template.Must(template.New("artifact").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{background:#111;color:#eee;font-family:monospace;margin:2rem;}pre{background:#222;padding:1rem;border-radius:8px;white-space:pre-wrap;}h2{font-size:1rem;color:#8ab4f8;}small{color:#777;}</style>
</head><body>
<h1>{{.Title}}</h1>
{{range .Sections}}<section class="agent" data-agent="{{.Agent}}">
<h2>{{.Agent}}{{if .Model}} <small>{{.Model}}</small>{{end}}</h2>
<pre>{{.Output}}</pre>
<small>sha256 {{.Digest}}</small>
</section>
{{else}}<p class="empty">no agent produced output</p>
{{end}}</body></html>
`))

// New creates an Assembler. Empty fields fall back to HTML and DefaultTitle.
func New(opts Options) (*Assembler, error) {
	if opts.Format == "" {
		opts.Format = FormatHTML
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	switch opts.Format {
	case FormatHTML, FormatText:
	default:
		return nil, fmt.Errorf("unknown artifact format %q", opts.Format)
	}
	return &Assembler{format: opts.Format, title: opts.Title, tmpl: htmlTemplate}, nil
}

// Format returns the configured rendering.
func (a *Assembler) Format() Format { return a.format }

// Assemble renders sections in the given order.
func (a *Assembler) Assemble(sections []Section) ([]byte, error) {
	if a.format == FormatText {
		return a.text(sections), nil
	}
	var buf bytes.Buffer
	err := a.tmpl.Execute(&buf, struct {
		Title    string
		Sections []Section
	}{a.title, sections})
	if err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *Assembler) text(sections []Section) []byte {
	var buf strings.Builder
	buf.WriteString("# " + a.title + "\n")
	for _, s := range sections {
		buf.WriteString("\n=== " + s.Agent)
		if s.Model != "" {
			buf.WriteString(" (" + s.Model + ")")
		}
		buf.WriteString(" ===\n")
		buf.WriteString(s.Output)
		buf.WriteString("\n")
	}
	return []byte(buf.String())
}
