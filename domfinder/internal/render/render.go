// CLAUDE:SUMMARY Renders result records as a styled HTML table, a standalone HTML document (plus data URI) and a Markdown table.
// Package render turns result records into the artifacts shown and offered
// for download after a run.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domfinder/domfinder/internal/pick"
	"github.com/hazyhaar/domfinder/domfinder/internal/store"
)

// DateFormat is the layout of extraction timestamps, e.g.
// "05 March 2024 Tuesday 02:07 PM".
const DateFormat = "02 January 2006 Monday 03:04 PM"

// DefaultPalette holds the row background colours.
var DefaultPalette = []string{"lightgray", "lightpink", "lightblue"}

// Report holds every artifact of one rendering.
type Report struct {
	Fragment        template.HTML // the table alone, for inline display
	Document        []byte        // standalone page offered as found_domains.html
	DocumentDataURI template.URL  // Document as a base64 data: URI
	Markdown        string        // the table as Markdown, offered as found_domains.md
}

var tableTmpl = template.Must(template.New("table").Parse(
	`<table style="border-collapse: collapse; width: 100%; border: 2px solid black;">
<tr style="background-color: lightblue;"><th style="border: 2px solid black; padding: 5px;">Domain</th><th style="border: 2px solid black; padding: 5px;">Title</th><th style="border: 2px solid black; padding: 5px;">Extracted Date</th></tr>
{{range .}}<tr style="background-color: {{.Color}};"><td style="border: 2px solid black; padding: 5px;"><a href="{{.Domain}}" target="_blank">{{.Domain}}</a></td><td style="border: 2px solid black; padding: 5px;">{{.Title}}</td><td style="border: 2px solid black; padding: 5px;">{{.ExtractedDate}}</td></tr>
{{end}}</table>`))

var documentTmpl = template.Must(template.New("document").Parse(
	`<html>
<head><title>Found Domains and Titles</title></head>
<body>
<p style="background-color: pink; padding: 5px;">Extraction Date: {{.Date}}</p>
{{.Table}}
</body>
</html>`))

type row struct {
	Color         string
	Domain        string
	Title         template.HTML
	ExtractedDate string
}

// Renderer renders reports. Not safe for concurrent use unless its Source is.
type Renderer struct {
	palette []string
	rnd     pick.Source
	policy  *bluemonday.Policy
	md      *converter.Converter
}

// New creates a Renderer. An empty palette means DefaultPalette; a nil
// source means a time-seeded one.
func New(palette []string, rnd pick.Source) *Renderer {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	if rnd == nil {
		rnd = pick.NewTimeSeeded()
	}
	return &Renderer{
		palette: palette,
		rnd:     rnd,
		policy:  bluemonday.StrictPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Render builds the report for records, stamped with runAt.
// Rows keep the order of records; one colour is drawn per row.
func (r *Renderer) Render(records []store.Record, runAt time.Time) (*Report, error) {
	rows := make([]row, len(records))
	for i, rec := range records {
		rows[i] = row{
			Color:  pick.One(r.rnd, r.palette),
			Domain: rec.Domain,
			// Titles come from arbitrary pages: the strict policy strips
			// markup and escapes the remaining text.
			Title:         template.HTML(r.policy.Sanitize(rec.Title)),
			ExtractedDate: rec.ExtractedDate,
		}
	}

	var tbl bytes.Buffer
	if err := tableTmpl.Execute(&tbl, rows); err != nil {
		return nil, fmt.Errorf("render table: %w", err)
	}
	fragment := template.HTML(tbl.String())

	var doc bytes.Buffer
	if err := documentTmpl.Execute(&doc, struct {
		Date  string
		Table template.HTML
	}{runAt.Format(DateFormat), fragment}); err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	md, err := r.md.ConvertString(string(fragment))
	if err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	return &Report{
		Fragment:        fragment,
		Document:        doc.Bytes(),
		DocumentDataURI: DataURI("text/html", doc.Bytes()),
		Markdown:        md,
	}, nil
}

// DataURI encodes body as a base64 data: URI of the given media type.
func DataURI(mediaType string, body []byte) template.URL {
	return template.URL("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(body))
}
