package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vietddude/doctrans/internal/core/domain"
)

// ============================================================
// textParser
// ============================================================

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestTextParser_Parse(t *testing.T) {
	path := writeTempFile(t, "doc.pdf", "First paragraph.\n\nSecond paragraph\nwith two lines.\n\nThird.")
	p := &textParser{proximity: domain.DefaultProximityThreshold}

	doc, err := p.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if doc.Format != domain.FormatPDF {
		t.Errorf("expected pdf format, got %s", doc.Format)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	page := doc.Pages[0]
	if len(page.TextRegions) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(page.TextRegions))
	}
	if page.TextRegions[1].Text != "Second paragraph\nwith two lines." {
		t.Errorf("unexpected region text: %q", page.TextRegions[1].Text)
	}
	// Two-line paragraph gets double height
	if page.TextRegions[1].BoundingBox.Height != 2*lineHeight {
		t.Errorf("expected height %v, got %v", 2*lineHeight, page.TextRegions[1].BoundingBox.Height)
	}
	if page.SpatialMap == nil || len(page.SpatialMap.ReadingOrder) != 3 {
		t.Error("expected spatial map built over all regions")
	}
	// Stacked regions read top to bottom
	for i, id := range page.SpatialMap.ReadingOrder {
		if id != page.TextRegions[i].ID {
			t.Errorf("reading order position %d: expected %s, got %s", i, page.TextRegions[i].ID, id)
		}
	}
}

func TestTextParser_ErrorCases(t *testing.T) {
	p := &textParser{}
	ctx := context.Background()

	_, err := p.Parse(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeParsingFailed {
		t.Errorf("expected parsing error for missing file, got %v", err)
	}

	empty := writeTempFile(t, "empty.pdf", "   \n\n  ")
	_, err = p.Parse(ctx, empty)
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeFileCorrupted {
		t.Errorf("expected corrupted-file error for blank input, got %v", err)
	}
}

func TestTextParser_Reconstruct(t *testing.T) {
	path := writeTempFile(t, "doc.pdf", "hello\n\nworld")
	p := &textParser{}
	ctx := context.Background()

	doc, err := p.Parse(ctx, path)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	regions := map[int][]domain.AdjustedRegion{
		1: {
			{TranslatedText: "xin chào"},
			{TranslatedText: "thế giới"},
		},
	}
	out, err := p.Reconstruct(ctx, doc, regions)
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if string(out) != "xin chào\n\nthế giới" {
		t.Errorf("unexpected output: %q", out)
	}

	// Untranslated regions fall back to the original text
	out, err = p.Reconstruct(ctx, doc, map[int][]domain.AdjustedRegion{1: {{TranslatedText: "xin chào"}}})
	if err != nil {
		t.Fatalf("reconstruct failed: %v", err)
	}
	if string(out) != "xin chào\n\nworld" {
		t.Errorf("unexpected fallback output: %q", out)
	}

	if _, err := p.Reconstruct(ctx, nil, nil); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestSplitParagraphs(t *testing.T) {
	got := splitParagraphs("a\r\n\r\nb\n\n\n\nc\n")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d paragraphs, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("paragraph %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// ============================================================
// parserFactory
// ============================================================

func TestParserFactory(t *testing.T) {
	f := &parserFactory{parser: &textParser{}}

	for _, format := range domain.SupportedFormats() {
		if _, err := f.ParserFor(format); err != nil {
			t.Errorf("expected parser for %s: %v", format, err)
		}
	}

	_, err := f.ParserFor("xlsx")
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeInvalidFormat {
		t.Errorf("expected invalid-format error, got %v", err)
	}
}

// ============================================================
// layoutAnalyzer
// ============================================================

func TestLayoutAnalyzer(t *testing.T) {
	a := &layoutAnalyzer{proximity: domain.DefaultProximityThreshold}

	doc := &domain.DocumentStructure{
		Pages: []domain.PageStructure{
			{
				PageNumber: 1,
				Width:      pageWidth,
				Height:     pageHeight,
				TextRegions: []domain.TextRegion{
					{ID: "r1", Text: "hello", BoundingBox: domain.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}},
				},
				VisualElements: []domain.VisualElement{
					{ID: "img", ElementType: "image", BoundingBox: domain.BoundingBox{X: 10, Y: 100, Width: 50, Height: 50}},
				},
			},
		},
	}

	analyses, err := a.AnalyzeLayout(context.Background(), doc)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(analyses) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(analyses))
	}
	got := analyses[0]
	if !got.HasImages || got.HasTables {
		t.Errorf("element detection wrong: %+v", got)
	}
	if got.ComplexityTag != "moderate" {
		t.Errorf("expected moderate for a page with images, got %s", got.ComplexityTag)
	}
	if got.TextDensity <= 0 {
		t.Error("expected positive text density")
	}
	if len(got.ReadingOrder) != 2 {
		t.Errorf("expected reading order over regions and elements, got %v", got.ReadingOrder)
	}

	if _, err := a.AnalyzeLayout(context.Background(), &domain.DocumentStructure{}); err == nil {
		t.Error("expected error for document without pages")
	}
}

// ============================================================
// httpTranslator
// ============================================================

func TestHTTPTranslator_UnsupportedPair(t *testing.T) {
	tr := newHTTPTranslator("", []string{"en:vi"})

	if _, err := tr.TranslateText(context.Background(), "hello", "en", "vi"); err != nil {
		t.Errorf("expected configured pair accepted: %v", err)
	}

	_, err := tr.TranslateText(context.Background(), "hello", "en", "ja")
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeUnsupportedPair {
		t.Errorf("expected unsupported-pair error, got %v", err)
	}
}

func TestHTTPTranslator_NoBackendPassthrough(t *testing.T) {
	tr := newHTTPTranslator("", nil)

	out, err := tr.TranslateText(context.Background(), "hello", "en", "vi")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if out != "hello" {
		t.Errorf("expected passthrough, got %q", out)
	}
}

func TestHTTPTranslator_Backend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(translateResponse{TranslatedText: req.TargetLang + ":" + req.Text})
	}))
	defer srv.Close()

	tr := newHTTPTranslator(srv.URL, nil)
	out, err := tr.TranslateText(context.Background(), "hello", "en", "vi")
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	if out != "vi:hello" {
		t.Errorf("unexpected translation: %q", out)
	}
}

func TestHTTPTranslator_BackendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := newHTTPTranslator(srv.URL, nil)
	_, err := tr.TranslateText(context.Background(), "hello", "en", "vi")
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeServiceFailed {
		t.Errorf("expected service failure, got %v", err)
	}
	if !ferr.Recoverable {
		t.Error("backend failures must be recoverable")
	}
}

// ============================================================
// heuristicFitter
// ============================================================

func TestHeuristicFitter(t *testing.T) {
	f := &heuristicFitter{}
	region := domain.TextRegion{
		ID:          "r1",
		Text:        "short",
		FontSize:    12,
		BoundingBox: domain.BoundingBox{X: 0, Y: 0, Width: 200, Height: 20},
	}

	// Fits at full size
	fit, err := f.FitTextToRegion(context.Background(), region, "short text")
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if fit.FontScale != 1.0 || fit.Overflow {
		t.Errorf("expected unscaled fit, got scale %.2f overflow %v", fit.FontScale, fit.Overflow)
	}

	// Longer translation shrinks the font
	long := strings.Repeat("long translated text ", 5)
	fit, err = f.FitTextToRegion(context.Background(), region, long)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if fit.FontScale >= 1.0 {
		t.Errorf("expected reduced scale, got %.2f", fit.FontScale)
	}
	if fit.FontScale < 0.6 {
		t.Errorf("scale below minimum: %.2f", fit.FontScale)
	}

	// Far too long overflows even at minimum scale
	fit, err = f.FitTextToRegion(context.Background(), region, strings.Repeat("x", 5000))
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if !fit.Overflow {
		t.Error("expected overflow flag at minimum scale")
	}

	// Degenerate geometry is a fitting error
	_, err = f.FitTextToRegion(context.Background(), domain.TextRegion{ID: "zero"}, "text")
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeTextFitting {
		t.Errorf("expected fitting error for zero-area region, got %v", err)
	}
}

// ============================================================
// scoringAssessor
// ============================================================

func TestScoringAssessor(t *testing.T) {
	s := &scoringAssessor{}
	ctx := context.Background()
	doc := &domain.DocumentStructure{}

	good := map[int][]domain.AdjustedRegion{
		1: {
			{TranslatedText: "xin chào", FontScale: 1.0},
			{TranslatedText: "thế giới", FontScale: 1.0},
		},
	}
	report, err := s.AssessTranslation(ctx, doc, nil, good, 0.8)
	if err != nil {
		t.Fatalf("assess failed: %v", err)
	}
	if report.OverallScore != 1.0 || report.BelowThreshold {
		t.Errorf("expected perfect score, got %+v", report)
	}
	if report.PageScores[1] != 1.0 {
		t.Errorf("expected page score 1.0, got %.2f", report.PageScores[1])
	}

	// Overflowing regions halve the layout score; empty output zeroes the
	// translation score
	bad := map[int][]domain.AdjustedRegion{
		1: {
			{TranslatedText: "", FontScale: 0.6, Overflow: true},
		},
	}
	_, err = s.AssessTranslation(ctx, doc, nil, bad, 0.8)
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeQualityThreshold {
		t.Errorf("expected quality threshold error, got %v", err)
	}

	// Same regions pass with a permissive threshold
	if _, err := s.AssessTranslation(ctx, doc, nil, bad, 0.1); err != nil {
		t.Errorf("expected pass under low threshold, got %v", err)
	}

	if _, err := s.AssessTranslation(ctx, doc, nil, nil, 0.8); err == nil {
		t.Error("expected error with nothing to assess")
	}
}

// ============================================================
// filePackager
// ============================================================

func TestFilePackager(t *testing.T) {
	dir := t.TempDir()
	p := &filePackager{dir: dir}

	downloadID, err := p.PrepareDownload(context.Background(), "job-1", []byte("translated content"), domain.FormatPDF)
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if downloadID == "" {
		t.Fatal("expected a download id")
	}

	path := filepath.Join(dir, "job-1_"+downloadID+".pdf")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
	if string(data) != "translated content" {
		t.Errorf("unexpected file content: %q", data)
	}

	_, err = p.PrepareDownload(context.Background(), "job-2", nil, domain.FormatPDF)
	var ferr *domain.Error
	if !errors.As(err, &ferr) || ferr.Code != domain.CodeReconstruction {
		t.Errorf("expected reconstruction error for empty content, got %v", err)
	}
}
