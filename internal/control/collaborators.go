package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/doctrans/internal/core/domain"
	redisclient "github.com/vietddude/doctrans/internal/infra/redis"
	"github.com/vietddude/doctrans/internal/pipeline/orchestrator"
)

// Default collaborator implementations. Format-specific parsers and real
// translation backends plug in through orchestrator.Collaborators; these
// cover the built-in plain-text path and the HTTP translation service.

const maxFileSize = 50 << 20 // 50 MB

const (
	lineHeight = 20.0
	pageWidth  = 595.0
	pageHeight = 842.0
	charWidth  = 0.55 // width per character as a fraction of font size
)

// textParser treats any input as UTF-8 text, one region per paragraph laid
// out top to bottom on a single page.
type textParser struct {
	proximity float64
}

func (p *textParser) Parse(ctx context.Context, filePath string) (*domain.DocumentStructure, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, domain.NewParsingError(domain.DetectFormat(filePath), err)
	}
	if info.Size() > maxFileSize {
		return nil, domain.NewFileSizeExceededError(info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, domain.NewParsingError(domain.DetectFormat(filePath), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, domain.NewFileCorruptedError(fmt.Errorf("file %s is empty", filePath))
	}

	paragraphs := splitParagraphs(string(data))
	page := domain.PageStructure{
		PageNumber: 1,
		Width:      pageWidth,
		Height:     pageHeight,
	}

	y := lineHeight
	for i, text := range paragraphs {
		lines := strings.Count(text, "\n") + 1
		region := domain.TextRegion{
			ID:   fmt.Sprintf("p1_r%d", i),
			Text: text,
			BoundingBox: domain.BoundingBox{
				X:      lineHeight,
				Y:      y,
				Width:  pageWidth - 2*lineHeight,
				Height: lineHeight * float64(lines),
			},
			FontFamily: "default",
			FontSize:   12,
			Confidence: 1,
		}
		page.TextRegions = append(page.TextRegions, region)
		y += region.BoundingBox.Height + lineHeight
	}
	page.SpatialMap = domain.BuildSpatialMap(page.TextRegions, page.VisualElements, p.proximity)

	return &domain.DocumentStructure{
		Format: domain.DetectFormat(filePath),
		Metadata: map[string]string{
			"source": filepath.Base(filePath),
		},
		Pages: []domain.PageStructure{page},
	}, nil
}

func (p *textParser) Reconstruct(ctx context.Context, doc *domain.DocumentStructure, regions map[int][]domain.AdjustedRegion) ([]byte, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, domain.NewReconstructionError("", fmt.Errorf("no parsed document"))
	}

	var out strings.Builder
	for _, page := range doc.Pages {
		adjusted := regions[page.PageNumber]
		for i, region := range page.TextRegions {
			text := region.Text
			if i < len(adjusted) && adjusted[i].TranslatedText != "" {
				text = adjusted[i].TranslatedText
			}
			if out.Len() > 0 {
				out.WriteString("\n\n")
			}
			out.WriteString(text)
		}
	}
	return []byte(out.String()), nil
}

func splitParagraphs(content string) []string {
	var out []string
	for _, block := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parserFactory serves the same text parser for every supported format.
type parserFactory struct {
	parser orchestrator.Parser
}

func (f *parserFactory) ParserFor(format domain.DocumentFormat) (orchestrator.Parser, error) {
	for _, supported := range domain.SupportedFormats() {
		if supported == format {
			return f.parser, nil
		}
	}
	supported := make([]string, 0, len(domain.SupportedFormats()))
	for _, s := range domain.SupportedFormats() {
		supported = append(supported, string(s))
	}
	return nil, domain.NewInvalidFormatError(string(format), supported)
}

// layoutAnalyzer derives per-page summaries from region geometry.
type layoutAnalyzer struct {
	proximity float64
}

func (a *layoutAnalyzer) AnalyzeLayout(ctx context.Context, doc *domain.DocumentStructure) ([]domain.LayoutAnalysis, error) {
	if doc == nil || len(doc.Pages) == 0 {
		return nil, domain.NewLayoutAnalysisError(fmt.Errorf("no parsed document"))
	}

	analyses := make([]domain.LayoutAnalysis, 0, len(doc.Pages))
	for i := range doc.Pages {
		page := &doc.Pages[i]
		if page.SpatialMap == nil {
			page.SpatialMap = domain.BuildSpatialMap(page.TextRegions, page.VisualElements, a.proximity)
		}

		chars := 0
		for _, r := range page.TextRegions {
			chars += len(r.Text)
		}
		density := 0.0
		if page.Width > 0 && page.Height > 0 {
			density = float64(chars) / (page.Width * page.Height)
		}

		hasTables := false
		hasImages := false
		for _, el := range page.VisualElements {
			switch el.ElementType {
			case "table":
				hasTables = true
			case "image":
				hasImages = true
			}
		}

		tag := "simple"
		switch {
		case len(page.TextRegions) > 50 || hasTables:
			tag = "complex"
		case len(page.TextRegions) > 15 || hasImages:
			tag = "moderate"
		}

		analyses = append(analyses, domain.LayoutAnalysis{
			PageNumber:    page.PageNumber,
			ColumnCount:   1,
			HasTables:     hasTables,
			HasImages:     hasImages,
			TextDensity:   density,
			ReadingOrder:  append([]string(nil), page.SpatialMap.ReadingOrder...),
			ComplexityTag: tag,
		})
	}
	return analyses, nil
}

// httpTranslator calls an external translation service over HTTP.
type httpTranslator struct {
	url    string
	client *http.Client
	pairs  map[string]bool // "source:target", empty = all pairs allowed
}

func newHTTPTranslator(url string, supportedPairs []string) *httpTranslator {
	pairs := make(map[string]bool, len(supportedPairs))
	for _, p := range supportedPairs {
		pairs[p] = true
	}
	return &httpTranslator{
		url:    url,
		client: &http.Client{Timeout: 30 * time.Second},
		pairs:  pairs,
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
}

func (t *httpTranslator) TranslateText(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if len(t.pairs) > 0 && !t.pairs[sourceLang+":"+targetLang] {
		return "", domain.NewUnsupportedPairError(sourceLang, targetLang)
	}
	if t.url == "" {
		// No backend configured, pass text through unchanged
		return text, nil
	}

	body, err := json.Marshal(translateRequest{Text: text, SourceLang: sourceLang, TargetLang: targetLang})
	if err != nil {
		return "", domain.NewServiceFailedError("translator", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewServiceFailedError("translator", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.NewServiceFailedError("translator", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", domain.NewServiceFailedError("translator",
			fmt.Errorf("translation service returned status %d", resp.StatusCode))
	}

	var out translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewServiceFailedError("translator", err)
	}
	return out.TranslatedText, nil
}

// heuristicFitter estimates rendered width from character count and shrinks
// the font until the text fits, flagging overflow past the minimum scale.
type heuristicFitter struct {
	minScale float64
}

func (f *heuristicFitter) FitTextToRegion(ctx context.Context, region domain.TextRegion, translated string) (domain.AdjustedRegion, error) {
	if region.BoundingBox.Width <= 0 || region.BoundingBox.Height <= 0 {
		return domain.AdjustedRegion{}, domain.NewTextFittingError(region.ID,
			fmt.Errorf("region has no area"))
	}

	minScale := f.minScale
	if minScale <= 0 {
		minScale = 0.6
	}

	fontSize := region.FontSize
	if fontSize <= 0 {
		fontSize = 12
	}

	capacity := capacityAt(region.BoundingBox, fontSize, 1.0)
	scale := 1.0
	if needed := float64(len(translated)); capacity > 0 && needed > capacity {
		// Shrinking the font gains capacity quadratically: narrower glyphs
		// and more lines per region.
		scale = capacity / needed
		if scale < minScale {
			scale = minScale
		}
	}

	overflow := float64(len(translated)) > capacityAt(region.BoundingBox, fontSize, scale)

	return domain.AdjustedRegion{
		Original:       region,
		TranslatedText: translated,
		AdjustedBox:    region.BoundingBox,
		FontScale:      scale,
		Overflow:       overflow,
	}, nil
}

func capacityAt(box domain.BoundingBox, fontSize, scale float64) float64 {
	scaled := fontSize * scale
	if scaled <= 0 {
		return 0
	}
	charsPerLine := box.Width / (scaled * charWidth)
	lines := box.Height / (scaled * 1.2)
	if lines < 1 {
		lines = 1
	}
	return charsPerLine * lines
}

// scoringAssessor scores layout preservation by font scale and overflow, and
// translation completeness by non-empty output.
type scoringAssessor struct{}

func (s *scoringAssessor) AssessTranslation(ctx context.Context, doc *domain.DocumentStructure, analyses []domain.LayoutAnalysis, regions map[int][]domain.AdjustedRegion, threshold float64) (*domain.QualityReport, error) {
	report := &domain.QualityReport{PageScores: make(map[int]float64)}

	total := 0
	var layoutSum, translationSum float64
	for pageNum, adjusted := range regions {
		var pageSum float64
		for _, r := range adjusted {
			layout := r.FontScale
			if r.Overflow {
				layout *= 0.5
			}
			translation := 0.0
			if strings.TrimSpace(r.TranslatedText) != "" {
				translation = 1.0
			}
			layoutSum += layout
			translationSum += translation
			pageSum += 0.6*layout + 0.4*translation
			total++
		}
		if len(adjusted) > 0 {
			report.PageScores[pageNum] = pageSum / float64(len(adjusted))
		}
	}

	if total == 0 {
		return nil, domain.NewLayoutAnalysisError(fmt.Errorf("no translated regions to assess"))
	}

	report.LayoutScore = layoutSum / float64(total)
	report.TranslationScore = translationSum / float64(total)
	report.OverallScore = 0.6*report.LayoutScore + 0.4*report.TranslationScore
	report.BelowThreshold = report.OverallScore < threshold

	if report.BelowThreshold {
		return nil, domain.NewQualityThresholdError(report.OverallScore, threshold)
	}
	return report, nil
}

// filePackager writes the reconstructed document to the download directory
// and registers the link in Redis when available.
type filePackager struct {
	dir   string
	ttl   time.Duration
	links *redisclient.Client
}

func (p *filePackager) PrepareDownload(ctx context.Context, jobID string, content []byte, format domain.DocumentFormat) (string, error) {
	if len(content) == 0 {
		return "", domain.NewReconstructionError(format, fmt.Errorf("no reconstructed content"))
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", domain.NewServiceError("packager", err)
	}

	downloadID := uuid.New().String()
	path := filepath.Join(p.dir, fmt.Sprintf("%s_%s.%s", jobID, downloadID, format))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", domain.NewServiceError("packager", err)
	}

	if p.links != nil {
		if err := p.links.RegisterDownload(ctx, downloadID, jobID, path, p.ttl); err != nil {
			return "", domain.NewServiceError("packager", err)
		}
	}
	return downloadID, nil
}
