package orchestrator

import (
	"context"

	"github.com/vietddude/doctrans/internal/core/domain"
)

// The pipeline consumes its collaborators through these interfaces. Concrete
// format parsers, the translation backend, the fitting and quality engines
// and the packager all live outside the core and are injected at
// construction time.

// Parser decodes one document format into the spatial document model and
// encodes the translated result back into bytes.
type Parser interface {
	Parse(ctx context.Context, filePath string) (*domain.DocumentStructure, error)
	Reconstruct(ctx context.Context, doc *domain.DocumentStructure, regions map[int][]domain.AdjustedRegion) ([]byte, error)
}

// ParserFactory resolves the parser for a document format.
type ParserFactory interface {
	ParserFor(format domain.DocumentFormat) (Parser, error)
}

// LayoutAnalyzer produces a per-page layout summary for a parsed document.
type LayoutAnalyzer interface {
	AnalyzeLayout(ctx context.Context, doc *domain.DocumentStructure) ([]domain.LayoutAnalysis, error)
}

// Translator translates a single text fragment.
type Translator interface {
	TranslateText(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// TextFitter fits translated text into the original region's geometry.
type TextFitter interface {
	FitTextToRegion(ctx context.Context, region domain.TextRegion, translated string) (domain.AdjustedRegion, error)
}

// QualityAssessor scores layout preservation and translation quality.
// Assessment failures never halt the pipeline.
type QualityAssessor interface {
	AssessTranslation(ctx context.Context, doc *domain.DocumentStructure, analyses []domain.LayoutAnalysis, regions map[int][]domain.AdjustedRegion, threshold float64) (*domain.QualityReport, error)
}

// Packager stores the reconstructed document for download and returns a
// download handle.
type Packager interface {
	PrepareDownload(ctx context.Context, jobID string, content []byte, format domain.DocumentFormat) (string, error)
}

// Collaborators bundles everything the orchestrator needs injected.
type Collaborators struct {
	Parsers    ParserFactory
	Layout     LayoutAnalyzer
	Translator Translator
	Fitter     TextFitter
	Quality    QualityAssessor
	Packager   Packager
}
