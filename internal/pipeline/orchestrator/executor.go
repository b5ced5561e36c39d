package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/pipeline/metrics"
	"github.com/vietddude/doctrans/internal/pipeline/recovery"
)

// process drives the job through the pipeline stages in order. Quality
// assessment is skipped entirely when disabled; its stage record stays
// pending and overall progress jumps straight to the download weight.
func (o *Orchestrator) process(entry *jobEntry) {
	for _, name := range domain.StageOrder() {
		if name == domain.StageAssessingQuality && !o.cfg.EnableQualityAssessment {
			continue
		}
		if !o.runStage(entry, name) {
			return
		}
	}

	entry.mu.Lock()
	if !entry.job.Status.IsTerminal() {
		entry.job.Status = domain.JobStatusCompleted
		entry.job.OverallProgress = 100
		now := time.Now()
		entry.job.CompletedAt = &now
	}
	entry.mu.Unlock()
}

// runStage executes one stage, delegating failures to the recovery pipeline.
// A recovered failure re-runs the stage from the top; an unrecovered one
// fails the job. Quality assessment failures are advisory and never halt.
// Returns whether the pipeline may continue.
func (o *Orchestrator) runStage(entry *jobEntry, name domain.StageName) bool {
	for {
		entry.mu.Lock()
		if entry.job.Status.IsTerminal() {
			entry.mu.Unlock()
			return false
		}
		stage := entry.job.Stages[name]
		entry.job.Status = jobStatusFor(name)
		entry.job.CurrentStage = name
		now := time.Now()
		stage.Status = domain.StageStatusRunning
		stage.StartTime = &now
		stage.EndTime = nil
		stage.Progress = 0
		stage.ItemsProcessed = 0
		snap := entry.job.Snapshot()
		entry.mu.Unlock()
		o.notify(snap)

		start := time.Now()
		err := o.executeStage(entry, name)
		metrics.StageDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

		if err == nil {
			entry.mu.Lock()
			// The job may have been cancelled or reclaimed while the
			// collaborator call was in flight; its result is discarded.
			if entry.job.Status.IsTerminal() {
				entry.mu.Unlock()
				return false
			}
			end := time.Now()
			stage.Status = domain.StageStatusCompleted
			stage.Progress = 100
			stage.EndTime = &end
			if w := domain.StageWeight(name); w > entry.job.OverallProgress {
				entry.job.OverallProgress = w
			}
			snap := entry.job.Snapshot()
			entry.mu.Unlock()
			o.notify(snap)
			return true
		}

		ectx := domain.ErrorContext{
			JobID:     entry.job.ID,
			FilePath:  entry.job.FilePath,
			Stage:     name,
			Component: "orchestrator",
		}
		result := o.auto.HandleWithRecovery(o.baseCtx, err, ectx, entry.rctx)
		ferr := result.Classified

		entry.mu.Lock()
		if entry.job.Status.IsTerminal() {
			entry.mu.Unlock()
			return false
		}
		stage.Errors = append(stage.Errors, ferr)
		entry.job.Errors = append(entry.job.Errors, ferr)

		if name == domain.StageAssessingQuality {
			end := time.Now()
			stage.Status = domain.StageStatusFailed
			stage.EndTime = &end
			if w := domain.StageWeight(name); w > entry.job.OverallProgress {
				entry.job.OverallProgress = w
			}
			snap := entry.job.Snapshot()
			entry.mu.Unlock()
			slog.Warn("Quality assessment failed, continuing",
				slog.String("job_id", snap.ID),
				slog.String("code", ferr.Code),
			)
			o.notify(snap)
			return true
		}

		if result.Recovered {
			entry.mu.Unlock()
			slog.Info("Stage recovered, re-running",
				slog.String("job_id", entry.job.ID),
				slog.String("stage", string(name)),
			)
			continue
		}

		end := time.Now()
		stage.Status = domain.StageStatusFailed
		stage.EndTime = &end
		entry.job.Status = domain.JobStatusFailed
		completed := time.Now()
		entry.job.CompletedAt = &completed
		snap = entry.job.Snapshot()
		entry.mu.Unlock()
		o.notify(snap)
		return false
	}
}

// executeStage runs the stage body under the job context's current timeout,
// so recovery-driven timeout increases take effect on the re-run.
func (o *Orchestrator) executeStage(entry *jobEntry, name domain.StageName) error {
	var timeout time.Duration
	entry.rctx.View(func(c *recovery.JobContext) { timeout = c.Timeout })
	if timeout <= 0 {
		timeout = o.cfg.JobTimeout
	}
	ctx, cancel := context.WithTimeout(o.baseCtx, timeout)
	defer cancel()

	switch name {
	case domain.StageParsing:
		return o.stageParse(ctx, entry)
	case domain.StageAnalyzingLayout:
		return o.stageAnalyzeLayout(ctx, entry)
	case domain.StageTranslating:
		return o.stageTranslate(ctx, entry)
	case domain.StageFittingText:
		return o.stageFitText(ctx, entry)
	case domain.StageReconstructing:
		return o.stageReconstruct(ctx, entry)
	case domain.StageAssessingQuality:
		return o.stageAssessQuality(ctx, entry)
	case domain.StagePreparingDownload:
		return o.stagePrepareDownload(ctx, entry)
	default:
		return fmt.Errorf("unknown stage: %s", name)
	}
}

func (o *Orchestrator) stageParse(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	filePath := entry.job.FilePath
	format := entry.job.Format
	entry.mu.Unlock()

	parser, err := o.collab.Parsers.ParserFor(format)
	if err != nil {
		return err
	}
	doc, err := parser.Parse(ctx, filePath)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return nil
	}
	entry.job.Document = doc
	stage := entry.job.Stages[domain.StageParsing]
	stage.TotalItems = doc.TotalTextRegions()
	stage.ItemsProcessed = stage.TotalItems
	entry.mu.Unlock()
	return nil
}

func (o *Orchestrator) stageAnalyzeLayout(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	doc := entry.job.Document
	entry.mu.Unlock()

	analyses, err := o.collab.Layout.AnalyzeLayout(ctx, doc)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return nil
	}
	entry.job.LayoutAnalysis = analyses
	stage := entry.job.Stages[domain.StageAnalyzingLayout]
	stage.TotalItems = len(doc.Pages)
	stage.ItemsProcessed = len(doc.Pages)
	entry.mu.Unlock()
	return nil
}

// stageTranslate translates every text region, reporting incremental
// progress between the analyzing and translating stage weights. Regions are
// processed in batches sized by the recovery context so resource
// optimization can shrink them on a re-run.
func (o *Orchestrator) stageTranslate(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	doc := entry.job.Document
	source := entry.job.SourceLanguage
	target := entry.job.TargetLanguage
	entry.mu.Unlock()

	var batchSize int
	var service string
	entry.rctx.View(func(c *recovery.JobContext) {
		batchSize = c.BatchSize
		service = c.CurrentService
	})
	if batchSize <= 0 {
		batchSize = 10
	}
	if service != "" {
		slog.Debug("Translating via fallback service",
			slog.String("job_id", entry.job.ID),
			slog.String("service", service),
		)
	}

	total := doc.TotalTextRegions()
	translated := make(map[int][]string, len(doc.Pages))
	processed := 0

	for pageIdx := range doc.Pages {
		page := &doc.Pages[pageIdx]
		texts := make([]string, len(page.TextRegions))
		for i := 0; i < len(page.TextRegions); i += batchSize {
			end := i + batchSize
			if end > len(page.TextRegions) {
				end = len(page.TextRegions)
			}
			for j := i; j < end; j++ {
				out, err := o.collab.Translator.TranslateText(ctx, page.TextRegions[j].Text, source, target)
				if err != nil {
					return err
				}
				texts[j] = out
				processed++
			}
			o.reportStageProgress(entry, domain.StageTranslating, processed, total)
		}
		translated[page.PageNumber] = texts
	}

	entry.mu.Lock()
	entry.translated = translated
	entry.mu.Unlock()
	return nil
}

func (o *Orchestrator) stageFitText(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	doc := entry.job.Document
	translated := entry.translated
	entry.mu.Unlock()

	total := doc.TotalTextRegions()
	regions := make(map[int][]domain.AdjustedRegion, len(doc.Pages))
	processed := 0

	for pageIdx := range doc.Pages {
		page := &doc.Pages[pageIdx]
		texts := translated[page.PageNumber]
		fitted := make([]domain.AdjustedRegion, 0, len(page.TextRegions))
		for i, region := range page.TextRegions {
			text := region.Text
			if i < len(texts) && texts[i] != "" {
				text = texts[i]
			}
			adjusted, err := o.collab.Fitter.FitTextToRegion(ctx, region, text)
			if err != nil {
				return err
			}
			fitted = append(fitted, adjusted)
			processed++
		}
		regions[page.PageNumber] = fitted
		o.reportStageProgress(entry, domain.StageFittingText, processed, total)
	}

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return nil
	}
	entry.job.TranslatedRegions = regions
	entry.mu.Unlock()
	return nil
}

func (o *Orchestrator) stageReconstruct(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	doc := entry.job.Document
	format := entry.job.Format
	regions := entry.job.TranslatedRegions
	entry.mu.Unlock()

	parser, err := o.collab.Parsers.ParserFor(format)
	if err != nil {
		return err
	}
	content, err := parser.Reconstruct(ctx, doc, regions)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return nil
	}
	entry.reconstructed = content
	stage := entry.job.Stages[domain.StageReconstructing]
	stage.TotalItems = len(doc.Pages)
	stage.ItemsProcessed = len(doc.Pages)
	entry.mu.Unlock()
	return nil
}

func (o *Orchestrator) stageAssessQuality(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	doc := entry.job.Document
	analyses := entry.job.LayoutAnalysis
	regions := entry.job.TranslatedRegions
	entry.mu.Unlock()

	var threshold float64
	entry.rctx.View(func(c *recovery.JobContext) { threshold = c.QualityThreshold })

	report, err := o.collab.Quality.AssessTranslation(ctx, doc, analyses, regions, threshold)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return nil
	}
	entry.job.QualityReport = report
	entry.mu.Unlock()
	return nil
}

func (o *Orchestrator) stagePrepareDownload(ctx context.Context, entry *jobEntry) error {
	entry.mu.Lock()
	jobID := entry.job.ID
	format := entry.job.Format
	content := entry.reconstructed
	entry.mu.Unlock()

	downloadID, err := o.collab.Packager.PrepareDownload(ctx, jobID, content, format)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return nil
	}
	entry.job.DownloadID = downloadID
	entry.mu.Unlock()
	return nil
}

// reportStageProgress interpolates overall progress between the previous
// stage's weight and this one's, keeping the overall value monotonic.
func (o *Orchestrator) reportStageProgress(entry *jobEntry, name domain.StageName, processed, total int) {
	if total <= 0 {
		return
	}
	pct := float64(processed) / float64(total) * 100
	base := previousStageWeight(name)
	span := domain.StageWeight(name) - base

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		return
	}
	stage := entry.job.Stages[name]
	stage.ItemsProcessed = processed
	stage.TotalItems = total
	stage.Progress = pct
	overall := base + span*pct/100
	if overall > entry.job.OverallProgress {
		entry.job.OverallProgress = overall
	}
	snap := entry.job.Snapshot()
	entry.mu.Unlock()
	o.notify(snap)
}

func previousStageWeight(name domain.StageName) float64 {
	order := domain.StageOrder()
	for i, s := range order {
		if s == name {
			if i == 0 {
				return 0
			}
			return domain.StageWeight(order[i-1])
		}
	}
	return 0
}

func jobStatusFor(name domain.StageName) domain.JobStatus {
	switch name {
	case domain.StageParsing:
		return domain.JobStatusParsing
	case domain.StageAnalyzingLayout:
		return domain.JobStatusAnalyzingLayout
	case domain.StageTranslating:
		return domain.JobStatusTranslating
	case domain.StageFittingText:
		return domain.JobStatusFittingText
	case domain.StageReconstructing:
		return domain.JobStatusReconstructing
	case domain.StageAssessingQuality:
		return domain.JobStatusAssessingQuality
	case domain.StagePreparingDownload:
		return domain.JobStatusPreparingDownload
	default:
		return domain.JobStatusPending
	}
}
