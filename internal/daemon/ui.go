package daemon

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"lipsync/internal/config"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type uiData struct {
	Title          string
	DefaultSeconds float64
	FaceExamples   []string
	AudioExamples  []string
	TokenRequired  bool
}

type uiPage struct {
	data uiData
}

func newUIPage(cfg *config.Config) *uiPage {
	return &uiPage{data: uiData{
		Title:          displayTitle(cfg.UI.Title),
		DefaultSeconds: cfg.Inference.DefaultSegmentSeconds,
		FaceExamples:   cfg.UI.FaceExamples,
		AudioExamples:  cfg.UI.AudioExamples,
		TokenRequired:  cfg.Paths.APIToken != "",
	}}
}

// ServeHTTP renders the upload form.
func (p *uiPage) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, p.data); err != nil {
		http.Error(w, "render form: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
