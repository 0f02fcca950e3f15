package usecase

import (
	"context"
	"log/slog"

	"GhibliScanner/internal/domain"
	"GhibliScanner/internal/ports"
)

// PipelineDeps wires all driven adapters into the candidate pipeline.
type PipelineDeps struct {
	Classifier ports.Classifier
	Downloader ports.Downloader
	Notifier   ports.Notifier
	Logger     *slog.Logger
}

// Pipeline answers every candidate-found event: classify, then download matches.
type Pipeline struct {
	classifier ports.Classifier
	downloader ports.Downloader
	notifier   ports.Notifier
	logger     *slog.Logger
}

var _ ports.CandidateHandler = (*Pipeline)(nil)

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		classifier: deps.Classifier,
		downloader: deps.Downloader,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
	}
}

// HandleCandidate produces exactly one result per candidate and never panics on adapter failures.
func (p *Pipeline) HandleCandidate(ctx context.Context, candidate domain.Candidate) domain.ProcessResult {
	result := domain.ProcessResult{Candidate: candidate, Status: domain.StatusProcessed}

	if p.classifier == nil {
		result.Status = domain.StatusError
		result.Reason = "classifier unavailable"
		return result
	}

	result.Verdict = p.classifier.Classify(ctx, candidate.URL)
	p.debug("verdict", "url", candidate.URL, "ghibli", result.Verdict.IsGhibli,
		"confidence", result.Verdict.Confidence, "error", result.Verdict.Error)

	if !result.Verdict.IsGhibli {
		result.Reason = domain.ReasonNotMatched
		return result
	}

	if p.downloader == nil {
		result.Status = domain.StatusError
		result.Reason = "downloader unavailable"
		return result
	}

	result.Download = p.downloader.Download(ctx, candidate.URL)
	result.Matched = result.Download.Success

	if result.Matched && p.notifier != nil {
		if err := p.notifier.PublishMatch(ctx, candidate, result.Download); err != nil {
			p.warn("publish match", "url", candidate.URL, "error", err)
		}
	}

	return result
}

func (p *Pipeline) debug(msg string, args ...interface{}) {
	if p.logger == nil {
		return
	}
	p.logger.Debug(msg, args...)
}

func (p *Pipeline) warn(msg string, args ...interface{}) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg, args...)
}
