// Package extract converts source documents into plain text with a
// confidence score. Markdown and text files are read directly; PDFs go
// through a two-stage pipeline that prefers fast plain-text extraction and
// falls back to table-aware row grouping.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	ragerr "github.com/Aman-CERP/archrag/internal/errors"
)

// DocumentType is the detected source document type.
type DocumentType string

const (
	TypeMarkdown DocumentType = "markdown"
	TypePDF      DocumentType = "pdf"
	TypeText     DocumentType = "text"
)

// Extraction methods reported in Result.Method.
const (
	MethodMarkdown    = "markdown"
	MethodText        = "text"
	MethodPDFText     = "pdf_text"
	MethodPDFTable    = "pdf_table"
	MethodPDFFallback = "pdf_fallback"
)

// Stage acceptance thresholds and the fallback cap.
const (
	textStageThreshold  = 0.85
	tableStageThreshold = 0.75
	fallbackCap         = 0.5
)

// Result is the outcome of extracting one document.
type Result struct {
	Text       string
	Confidence float64
	Method     string
	Type       DocumentType
	HasTables  bool
}

// Extractor turns files into plain text. Safe for concurrent use.
type Extractor struct {
	log *slog.Logger
}

// New creates an extractor.
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

// Extract reads and converts the file at path. Unknown extensions are tried
// as PDF first, then as text; if both fail the format is unsupported.
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return e.extractPlain(path, TypeMarkdown, MethodMarkdown, 0.95)
	case ".pdf":
		return e.extractPDF(path)
	case ".txt", ".text", ".rst", ".adoc":
		return e.extractPlain(path, TypeText, MethodText, 0.9)
	default:
		if res, err := e.extractPDF(path); err == nil {
			return res, nil
		}
		if res, err := e.extractPlain(path, TypeText, MethodText, 0.9); err == nil {
			return res, nil
		}
		return nil, ragerr.New(ragerr.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported document format: %s", path), nil)
	}
}

// extractPlain reads a UTF-8 file verbatim.
func (e *Extractor) extractPlain(path string, typ DocumentType, method string, confidence float64) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ragerr.IOError(fmt.Sprintf("failed to read %s", path), err)
	}
	if !isMostlyText(data) {
		return nil, ragerr.ExtractError(fmt.Sprintf("%s does not look like text", path), nil)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		confidence = 0
	}
	return &Result{
		Text:       text,
		Confidence: confidence,
		Method:     method,
		Type:       typ,
	}, nil
}

// extractPDF runs the two-stage PDF pipeline: plain text first, then
// table-aware row grouping, then the stage-1 text capped at low confidence.
func (e *Extractor) extractPDF(path string) (*Result, error) {
	text, textErr := pdfPlainText(path)
	if textErr == nil {
		conf := ScoreConfidence(text, false)
		if conf > textStageThreshold {
			return &Result{Text: text, Confidence: conf, Method: MethodPDFText, Type: TypePDF}, nil
		}
	}

	tableText, hasTables, tableErr := pdfTableText(path)
	if tableErr == nil {
		conf := ScoreConfidence(tableText, hasTables)
		if conf > tableStageThreshold {
			return &Result{
				Text:       tableText,
				Confidence: conf,
				Method:     MethodPDFTable,
				Type:       TypePDF,
				HasTables:  hasTables,
			}, nil
		}
	}

	if textErr == nil {
		conf := ScoreConfidence(text, false)
		if conf > fallbackCap {
			conf = fallbackCap
		}
		e.log.Warn("pdf_extraction_fallback",
			slog.String("path", path),
			slog.Float64("confidence", conf))
		return &Result{Text: text, Confidence: conf, Method: MethodPDFFallback, Type: TypePDF}, nil
	}

	cause := textErr
	if tableErr != nil {
		cause = fmt.Errorf("text stage: %v; table stage: %w", textErr, tableErr)
	}
	return nil, ragerr.New(ragerr.ErrCodeExtractFailed,
		fmt.Sprintf("all extraction stages failed for %s", path), cause)
}

// pdfPlainText extracts the whole document as one text stream.
func pdfPlainText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// pdfTableText extracts page text row by row, joining cells within a row
// with pipes so tabular layouts survive as searchable text.
func pdfTableText(path string) (string, bool, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	var b strings.Builder
	hasTables := false

	for pageNum := 1; pageNum <= r.NumPage(); pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", false, err
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				s := strings.TrimSpace(word.S)
				if s != "" {
					cells = append(cells, s)
				}
			}
			if len(cells) == 0 {
				continue
			}
			if len(cells) > 1 {
				hasTables = true
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return b.String(), hasTables, nil
}

// ScoreConfidence estimates extraction quality from simple text statistics.
// The scale is 0 (empty) to 0.95.
func ScoreConfidence(text string, hasTables bool) float64 {
	if strings.TrimSpace(text) == "" {
		return 0.0
	}

	conf := 0.5

	wordCount := len(strings.Fields(text))
	if wordCount > 100 {
		conf += 0.2
	}
	if wordCount > 500 {
		conf += 0.1
	}

	paragraphs := 0
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs++
		}
	}
	if paragraphs > 5 {
		conf += 0.1
	}

	terminators := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if terminators > 10 {
		conf += 0.1
	}

	if hasTables {
		conf += 0.1
	}

	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// isMostlyText rejects binary files: a NUL byte or a high share of
// non-printable bytes in the first 8 KiB.
func isMostlyText(data []byte) bool {
	sample := data
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	if len(sample) == 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range sample {
		if b == 0 {
			return false
		}
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) < 0.1
}
