// Package report renders discussion analysis reports.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/logger"
)

// FileName is the fixed name of the HTML report inside an output directory.
const FileName = "analysis_report.html"

//go:embed templates/*
var templateFS embed.FS

var funcs = map[string]any{
	"seconds": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"clock": func(v float64) string {
		d := time.Duration(v * float64(time.Second)).Round(time.Second)
		return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	},
	"join": strings.Join,
}

// Generator renders reports from the embedded templates.
type Generator struct {
	html *template.Template
	text *texttemplate.Template
	now  func() time.Time
}

func NewGenerator() (*Generator, error) {
	html, err := template.New("discussion_analysis.html").Funcs(funcs).
		ParseFS(templateFS, "templates/discussion_analysis.html")
	if err != nil {
		return nil, &GenerationError{Msg: "failed to initialize template environment", Err: err}
	}
	text, err := texttemplate.New("discussion_summary.txt").Funcs(funcs).
		ParseFS(templateFS, "templates/discussion_summary.txt")
	if err != nil {
		return nil, &GenerationError{Msg: "failed to initialize template environment", Err: err}
	}
	return &Generator{html: html, text: text, now: time.Now}, nil
}

func validate(data *DiscussionData) error {
	if data == nil || len(data.Topics) == 0 || len(data.Transcription) == 0 {
		return &GenerationError{Msg: "missing required data fields: topics and transcription"}
	}
	return nil
}

func (g *Generator) pageFor(data *DiscussionData) reportPage {
	return reportPage{Data: data, Viz: BuildVizData(data), Tree: buildTopicTree(data), Generated: g.now()}
}

// RenderHTML renders the HTML report without writing it.
func (g *Generator) RenderHTML(data *DiscussionData) ([]byte, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := g.html.Execute(&buf, g.pageFor(data)); err != nil {
		return nil, &GenerationError{Msg: "template error", Err: err}
	}
	return buf.Bytes(), nil
}

// RenderText renders a plain text summary.
func (g *Generator) RenderText(data *DiscussionData) ([]byte, error) {
	if err := validate(data); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := g.text.Execute(&buf, g.pageFor(data)); err != nil {
		return nil, &GenerationError{Msg: "template error", Err: err}
	}
	return buf.Bytes(), nil
}

// Generate writes {outputDir}/analysis_report.html, replacing any previous
// report there. Nothing is created when data is incomplete.
func (g *Generator) Generate(data *DiscussionData, outputDir string) (string, error) {
	html, err := g.RenderHTML(data)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", &GenerationError{Msg: "failed to generate report", Err: err}
	}
	path := filepath.Join(outputDir, FileName)
	if err := os.WriteFile(path, html, 0644); err != nil {
		return "", &GenerationError{Msg: "failed to generate report", Err: err}
	}
	logger.Info("Report generated", "path", path, "topics", len(data.Topics))
	return path, nil
}
