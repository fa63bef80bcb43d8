// CLAUDE:SUMMARY HTTP surface: form page, extract and CSV download actions, artifact downloads, history JSON, health.
package domfinder

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/domfinder/domfinder/internal/render"
	"github.com/hazyhaar/domfinder/kit"
	"github.com/hazyhaar/domfinder/shield"
)

// Routes mounts the web surface on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Post("/extract", s.handleExtract)
	r.Post("/download", s.handleDownload)
	r.Get("/found_domains.csv", s.handleCSV)
	r.Get("/found_domains.html", s.handleHTML)
	r.Get("/found_domains.md", s.handleMarkdown)
	r.Get("/history", s.handleHistory)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

type pageData struct {
	Flash      *shield.FlashMessage
	Text       string
	Reload     bool
	Run        *Run
	CSVDataURI template.URL
	Error      string
}

// Empty reports whether the prompt for text should be shown.
func (p pageData) Empty() bool { return strings.TrimSpace(p.Text) == "" && p.Error == "" }

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><meta name="viewport" content="width=device-width,initial-scale=1">
<title>Domain Extractor, Sorter, and Title Checker App</title>
<style>
body{font-family:system-ui,sans-serif;max-width:1000px;margin:2rem auto;padding:0 1rem;color:#222}
textarea{width:100%;font-family:monospace}
.flash{padding:.5rem;border-radius:4px}
.flash.error,.error{background:#fdd;padding:.5rem}
.flash.success{background:#dfd}
</style></head><body>
<h1>Domain Extractor, Sorter, and Title Checker App</h1>
{{- with .Flash}}
<p class="flash {{.Type}}">{{.Message}}</p>
{{- end}}
<form method="post" action="/extract">
<label for="text">Enter text:</label>
<textarea id="text" name="text" rows="12">{{.Text}}</textarea>
<p><label><input type="checkbox" name="reload" value="1"{{if .Reload}} checked{{end}}> Load Existing Data</label></p>
<p><button type="submit">Extract Domains</button>
<button type="submit" formaction="/download">Download CSV</button></p>
</form>
{{- with .Error}}
<p class="error">{{.}}</p>
{{- end}}
{{- with .Run}}
<p>Total Valid Domains Found: {{len .URLs}}</p>
{{- if .Hostnames}}
<ul>{{range .Hostnames}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
<h2>Domain Titles:</h2>
{{.Report.Fragment}}
<p><a href="{{.Report.DocumentDataURI}}" download="found_domains.html">Click to download HTML file</a>
&middot; <a href="/found_domains.md">found_domains.md</a></p>
{{- end}}
{{- if .Empty}}
<p>Please enter some text to extract domains and titles.</p>
{{- end}}
{{- with .CSVDataURI}}
<p><a href="{{.}}" download="found_domains.csv">Click to download CSV file</a></p>
{{- end}}
</body></html>`))

func (s *Service) renderPage(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Flash = shield.GetFlash(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, data); err != nil {
		shield.GetLogger(r.Context()).Error("render page", "error", err)
	}
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.sessions.FromRequest(w, r)
	s.renderPage(w, r, http.StatusOK, pageData{})
}

func (s *Service) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, r, http.StatusBadRequest, pageData{Error: "Invalid form: " + err.Error()})
		return
	}
	data := pageData{
		Text:   r.PostFormValue("text"),
		Reload: r.PostFormValue("reload") != "",
	}

	ctx := kit.WithSessionID(r.Context(), sess.ID)
	run, err := s.Extract(ctx, sess, data.Text, data.Reload)
	if err != nil {
		shield.GetLogger(ctx).Error("extract", "error", err)
		data.Error = "Extraction failed: " + err.Error()
		s.renderPage(w, r, http.StatusInternalServerError, data)
		return
	}
	data.Run = run
	s.renderPage(w, r, http.StatusOK, data)
}

func (s *Service) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	data := pageData{
		Text:   r.PostFormValue("text"),
		Reload: r.PostFormValue("reload") != "",
	}
	csv, err := s.DownloadCSV(sess)
	if err != nil {
		shield.GetLogger(r.Context()).Error("download csv", "error", err)
		data.Error = "Download failed: " + err.Error()
		s.renderPage(w, r, http.StatusInternalServerError, data)
		return
	}
	data.CSVDataURI = render.DataURI("text/csv", csv)
	s.renderPage(w, r, http.StatusOK, data)
}

func (s *Service) handleCSV(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.FromRequest(w, r)
	csv, err := s.DownloadCSV(sess)
	if err != nil {
		shield.GetLogger(r.Context()).Error("download csv", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", "found_domains.csv", csv)
}

func (s *Service) handleHTML(w http.ResponseWriter, r *http.Request) {
	run, err := s.LastRun(s.sessions.FromRequest(w, r))
	if err != nil {
		s.noRun(w, r)
		return
	}
	attachment(w, "text/html; charset=utf-8", "found_domains.html", run.Report.Document)
}

func (s *Service) handleMarkdown(w http.ResponseWriter, r *http.Request) {
	run, err := s.LastRun(s.sessions.FromRequest(w, r))
	if err != nil {
		s.noRun(w, r)
		return
	}
	attachment(w, "text/markdown; charset=utf-8", "found_domains.md", []byte(run.Report.Markdown))
}

// noRun sends the browser back to the form with an explanation.
func (s *Service) noRun(w http.ResponseWriter, r *http.Request) {
	shield.SetFlash(w, "error", "Run an extraction first.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.History(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Helpers ---

func attachment(w http.ResponseWriter, contentType, name string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	if v > 500 {
		return 500
	}
	return v
}
