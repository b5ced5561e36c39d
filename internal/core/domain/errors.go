package domain

import (
	"fmt"
	"strings"
	"time"
)

// ErrorSeverity ranks how badly a failure affects the job.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityHigh     ErrorSeverity = "high"
	SeverityCritical ErrorSeverity = "critical"
)

// ErrorCategory groups error codes for classification and recovery-action
// selection.
type ErrorCategory string

const (
	CategoryFileProcessing   ErrorCategory = "file_processing"
	CategoryTranslation      ErrorCategory = "translation"
	CategoryLayoutProcessing ErrorCategory = "layout_processing"
	CategoryValidation       ErrorCategory = "validation"
	CategoryService          ErrorCategory = "service"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryResource         ErrorCategory = "resource"
)

// Stable error codes. Each code maps to exactly one category and a fixed
// default suggestion set.
const (
	CodeInvalidFormat     = "FILE_001"
	CodeFileSizeExceeded  = "FILE_002"
	CodeFileCorrupted     = "FILE_003"
	CodeParsingFailed     = "FILE_004"
	CodeUnsupportedPair   = "TRANS_001"
	CodeServiceFailed     = "TRANS_002"
	CodeContextLost       = "TRANS_003"
	CodeQualityThreshold  = "TRANS_004"
	CodeLayoutAnalysis    = "LAYOUT_001"
	CodeTextFitting       = "LAYOUT_002"
	CodeReconstruction    = "LAYOUT_003"
	CodeMemoryExceeded    = "RESOURCE_001"
	CodeTimeout           = "RESOURCE_002"
	CodeServiceGeneric    = "SERVICE_001"
	CodeConcurrencyLimit  = "SERVICE_002"
	CodeValidationFailed  = "VALIDATION_001"
	CodeConfigurationBad  = "CONFIG_001"
	CodeUnknown           = "UNKNOWN_001"
)

// ErrorContext carries where an error happened.
type ErrorContext struct {
	JobID     string            `json:"job_id,omitempty"`
	FilePath  string            `json:"file_path,omitempty"`
	Stage     StageName         `json:"stage,omitempty"`
	Component string            `json:"component,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Error is the normalized failure type every pipeline stage produces.
// Instances are immutable once constructed. The cause is excluded from
// serialization; its text survives in CauseText.
type Error struct {
	Message     string        `json:"message"`
	Code        string        `json:"code"`
	Category    ErrorCategory `json:"category"`
	Severity    ErrorSeverity `json:"severity"`
	Recoverable bool          `json:"recoverable"`
	Context     ErrorContext  `json:"context"`
	Cause       error         `json:"-"`
	CauseText   string        `json:"cause,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

func (e *Error) Error() string {
	parts := []string{fmt.Sprintf("[%s] %s", e.Code, e.Message)}
	if e.Context.JobID != "" {
		parts = append(parts, "job: "+e.Context.JobID)
	}
	if e.Context.Stage != "" {
		parts = append(parts, "stage: "+string(e.Context.Stage))
	}
	if e.Cause != nil {
		parts = append(parts, "caused by: "+e.Cause.Error())
	}
	return strings.Join(parts, " | ")
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext returns a copy of the error carrying the given context. The
// original is left untouched.
func (e *Error) WithContext(ctx ErrorContext) *Error {
	clone := *e
	clone.Context = ctx
	return &clone
}

func newError(code string, category ErrorCategory, severity ErrorSeverity, recoverable bool, message string, cause error, suggestions ...string) *Error {
	e := &Error{
		Message:     message,
		Code:        code,
		Category:    category,
		Severity:    severity,
		Recoverable: recoverable,
		Cause:       cause,
		Suggestions: suggestions,
		Timestamp:   time.Now(),
	}
	if cause != nil {
		e.CauseText = cause.Error()
	}
	return e
}

// NewInvalidFormatError reports an unsupported document format.
func NewInvalidFormatError(format string, supported []string) *Error {
	return newError(CodeInvalidFormat, CategoryFileProcessing, SeverityMedium, false,
		fmt.Sprintf("unsupported file format: %s (supported: %s)", format, strings.Join(supported, ", ")),
		nil,
		"convert the file to a supported format",
		"check that the file extension matches the actual format",
	)
}

// NewFileSizeExceededError reports an oversized input file.
func NewFileSizeExceededError(size, limit int64) *Error {
	return newError(CodeFileSizeExceeded, CategoryFileProcessing, SeverityMedium, false,
		fmt.Sprintf("file size (%d bytes) exceeds maximum allowed size (%d bytes)", size, limit),
		nil,
		"split large documents into smaller sections",
		"compress images or remove unnecessary content",
	)
}

// NewFileCorruptedError reports an unreadable input file.
func NewFileCorruptedError(cause error) *Error {
	return newError(CodeFileCorrupted, CategoryFileProcessing, SeverityHigh, false,
		"file appears to be corrupted or unreadable", cause,
		"re-save the file in its original application",
		"upload a different copy of the file",
	)
}

// NewParsingError reports a document parsing failure.
func NewParsingError(format DocumentFormat, cause error) *Error {
	return newError(CodeParsingFailed, CategoryFileProcessing, SeverityHigh, false,
		fmt.Sprintf("failed to parse %s document", format), cause,
		"verify the file format matches the expected type",
		"check whether the document is protected or encrypted",
	)
}

// NewUnsupportedPairError reports an unsupported language combination.
func NewUnsupportedPairError(source, target string) *Error {
	return newError(CodeUnsupportedPair, CategoryTranslation, SeverityMedium, false,
		fmt.Sprintf("translation from %s to %s is not supported", source, target),
		nil,
		"check the list of supported language pairs",
		"verify the language codes are correct",
	)
}

// NewServiceFailedError reports a translation backend failure. Recoverable:
// the retry and fallback-service strategies apply.
func NewServiceFailedError(service string, cause error) *Error {
	return newError(CodeServiceFailed, CategoryTranslation, SeverityHigh, true,
		fmt.Sprintf("translation service %q failed", service), cause,
		"try again in a few moments",
		"switch to a different translation service",
	)
}

// NewQualityThresholdError reports translation quality below the required
// threshold. Recoverable via the quality-threshold strategy.
func NewQualityThresholdError(score, threshold float64) *Error {
	return newError(CodeQualityThreshold, CategoryTranslation, SeverityMedium, true,
		fmt.Sprintf("translation quality (%.2f) is below required threshold (%.2f)", score, threshold),
		nil,
		"lower the quality threshold",
		"try a different translation service",
	)
}

// NewLayoutAnalysisError reports a layout analysis failure.
func NewLayoutAnalysisError(cause error) *Error {
	return newError(CodeLayoutAnalysis, CategoryLayoutProcessing, SeverityHigh, false,
		"failed to analyze document layout", cause,
		"check whether the document has an unusually complex layout",
		"try processing individual pages separately",
	)
}

// NewTextFittingError reports that translated text could not be fitted into
// its region. Recoverable via the layout-adjustment strategy.
func NewTextFittingError(regionID string, cause error) *Error {
	return newError(CodeTextFitting, CategoryLayoutProcessing, SeverityMedium, true,
		fmt.Sprintf("failed to fit translated text into region %s", regionID), cause,
		"allow larger layout adjustments",
		"enable automatic font size adjustment",
	)
}

// NewReconstructionError reports a document reconstruction failure.
// Recoverable via simplified-layout mode.
func NewReconstructionError(format DocumentFormat, cause error) *Error {
	return newError(CodeReconstruction, CategoryLayoutProcessing, SeverityHigh, true,
		fmt.Sprintf("failed to reconstruct %s document", format), cause,
		"try exporting to a different format",
		"simplify the document layout before translation",
	)
}

// NewMemoryExceededError reports memory exhaustion. Recoverable via the
// resource-optimization strategy.
func NewMemoryExceededError(usageMB, limitMB int) *Error {
	return newError(CodeMemoryExceeded, CategoryResource, SeverityHigh, true,
		fmt.Sprintf("memory usage (%d MB) exceeds limit (%d MB)", usageMB, limitMB),
		nil,
		"process smaller documents",
		"enable low-memory mode",
	)
}

// NewTimeoutError reports an operation exceeding its time budget.
func NewTimeoutError(operation string, timeout time.Duration) *Error {
	return newError(CodeTimeout, CategoryResource, SeverityHigh, true,
		fmt.Sprintf("operation %q timed out after %s", operation, timeout),
		nil,
		"increase timeout limits",
		"retry the operation",
	)
}

// NewJobTimeoutError is the reclamation sweep's force-fail error. It is
// deliberately non-recoverable: the job is already terminal.
func NewJobTimeoutError(timeout time.Duration) *Error {
	return newError(CodeTimeout, CategoryResource, SeverityHigh, false,
		fmt.Sprintf("job timed out after %s", timeout),
		nil,
		"retry the job",
		"split the document into smaller sections",
	)
}

// NewServiceError reports a generic external-collaborator failure.
func NewServiceError(component string, cause error) *Error {
	return newError(CodeServiceGeneric, CategoryService, SeverityMedium, true,
		fmt.Sprintf("service %q failed", component), cause,
		"try again in a few moments",
	)
}

// NewConcurrencyLimitError reports admission rejection at the concurrency cap.
func NewConcurrencyLimitError(limit int) *Error {
	return newError(CodeConcurrencyLimit, CategoryService, SeverityMedium, false,
		fmt.Sprintf("too many concurrent jobs (limit %d)", limit),
		nil,
		"wait for running jobs to finish and submit again",
	)
}

// NewValidationError reports bad request parameters.
func NewValidationError(message string) *Error {
	return newError(CodeValidationFailed, CategoryValidation, SeverityMedium, false,
		message, nil,
		"check the request parameters",
	)
}

// NewConfigurationError reports bad system setup.
func NewConfigurationError(message string, cause error) *Error {
	return newError(CodeConfigurationBad, CategoryConfiguration, SeverityHigh, false,
		message, cause,
		"review the service configuration",
	)
}

// NewUnknownError wraps an arbitrary failure that no classifier recognised.
func NewUnknownError(cause error) *Error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return newError(CodeUnknown, CategoryService, SeverityMedium, false,
		msg, cause,
		"retry the operation",
		"contact support if the problem persists",
	)
}
