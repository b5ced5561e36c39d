package domain

// DocumentFormat identifies a supported document type.
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
	FormatEPUB DocumentFormat = "epub"
)

// SupportedFormats lists the formats the pipeline accepts.
func SupportedFormats() []DocumentFormat {
	return []DocumentFormat{FormatPDF, FormatDOCX, FormatEPUB}
}

// DetectFormat maps a file extension to a document format, defaulting to PDF
// when the extension is unknown.
func DetectFormat(filePath string) DocumentFormat {
	for i := len(filePath) - 1; i >= 0; i-- {
		if filePath[i] == '.' {
			switch filePath[i+1:] {
			case "pdf", "PDF":
				return FormatPDF
			case "docx", "doc", "DOCX", "DOC":
				return FormatDOCX
			case "epub", "EPUB":
				return FormatEPUB
			}
			break
		}
	}
	return FormatPDF
}

// BoundingBox is an axis-aligned rectangle describing an element's position
// on a page.
type BoundingBox struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Center returns the box's center point.
func (b BoundingBox) Center() (x, y float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// TextRegion is a translatable block of text with a stable id.
type TextRegion struct {
	ID          string
	BoundingBox BoundingBox
	Text        string
	FontFamily  string
	FontSize    float64
	Metadata    map[string]string
	Confidence  float64
}

// VisualElement is a non-text page element (image, table, shape).
type VisualElement struct {
	ID          string
	ElementType string
	BoundingBox BoundingBox
	Content     []byte
	Metadata    map[string]string
}

// PageStructure is one page of a parsed document.
type PageStructure struct {
	PageNumber     int
	Width          float64
	Height         float64
	TextRegions    []TextRegion
	VisualElements []VisualElement
	SpatialMap     *SpatialMap
}

// DocumentStructure is the parsed form of an input document, shared by every
// pipeline stage.
type DocumentStructure struct {
	Format   DocumentFormat
	Metadata map[string]string
	Pages    []PageStructure
}

// TotalTextRegions counts text regions across all pages.
func (d *DocumentStructure) TotalTextRegions() int {
	total := 0
	for i := range d.Pages {
		total += len(d.Pages[i].TextRegions)
	}
	return total
}

// AdjustedRegion is a text region after translation and fitting, carrying
// the translated content and any geometry adjustment the fitter applied.
type AdjustedRegion struct {
	Original       TextRegion
	TranslatedText string
	AdjustedBox    BoundingBox
	FontScale      float64
	Overflow       bool
}

// LayoutAnalysis is the analyzer's per-page summary.
type LayoutAnalysis struct {
	PageNumber    int
	ColumnCount   int
	HasTables     bool
	HasImages     bool
	TextDensity   float64
	ReadingOrder  []string
	ComplexityTag string
}

// QualityReport is the assessor's verdict for a completed translation.
type QualityReport struct {
	OverallScore     float64
	LayoutScore      float64
	TranslationScore float64
	PageScores       map[int]float64
	BelowThreshold   bool
	Notes            []string
}
