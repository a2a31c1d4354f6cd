// Package deploy compares manifest records against the installed tree and
// dispatches each pair to a status, diff or install handler.
package deploy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/schaermu/filedeploy/internal/compare"
	"github.com/schaermu/filedeploy/internal/hook"
	"github.com/schaermu/filedeploy/internal/logfields"
	"github.com/schaermu/filedeploy/internal/manifest"
	"github.com/schaermu/filedeploy/internal/report"
)

// Handler acts on one compared record.
type Handler interface {
	Handle(ctx context.Context, rec manifest.Record, res compare.Result) (Outcome, error)
}

// Engine walks the records of a manifest in order
type Engine struct {
	records []manifest.Record
	handler Handler
	console *report.Console
	logger  *slog.Logger
	compare func(src, dest string) (compare.Result, error)
}

// NewEngine creates a new engine
func NewEngine(records []manifest.Record, handler Handler, console *report.Console, logger *slog.Logger) *Engine {
	return &Engine{
		records: records,
		handler: handler,
		console: console,
		logger:  logger,
		compare: compare.Files,
	}
}

// Run processes every record sequentially. Failures of single records are
// reported and counted; only cancellation of ctx stops the run early.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	summary := newSummary()

	for _, rec := range e.records {
		if err := ctx.Err(); err != nil {
			e.logger.Warn("run interrupted", logfields.Line(rec.Line), logfields.Error(err))
			return summary, err
		}

		logger := e.logger.With(
			logfields.Line(rec.Line),
			logfields.Source(rec.Source),
			logfields.Destination(rec.Destination))

		res, err := e.compare(rec.Source, rec.Destination)
		if err != nil {
			summary.Failed++
			logger.Error("comparison failed", logfields.Error(err))
			e.console.Printf(report.Error, "Comparing '%s' with '%s' failed: %v", rec.Source, rec.Destination, err)
			continue
		}
		summary.Results[res]++
		logger.Debug("compared", logfields.Result(res.String()))

		outcome, err := e.handler.Handle(ctx, rec, res)
		summary.Outcomes[outcome]++
		if err != nil {
			e.reportError(logger, rec, err, summary)
			continue
		}
		logger.Debug("handled", slog.String("outcome", outcome.String()))
	}

	e.logger.Info("run complete", slog.Any("summary", summary))
	return summary, nil
}

func (e *Engine) reportError(logger *slog.Logger, rec manifest.Record, err error, summary *Summary) {
	var exitErr *hook.ExitError
	if errors.As(err, &exitErr) {
		summary.Warnings++
		attrs := []any{logfields.Command(exitErr.Argv), logfields.ExitCode(exitErr.Code)}
		if exitErr.Signal != nil {
			attrs = append(attrs, slog.String("signal", exitErr.Signal.String()))
		}
		logger.Warn("post-install command failed", attrs...)
		e.console.Printf(report.Warning, "Post-install command for '%s' failed: %v", rec.Destination, exitErr)
		return
	}

	summary.Failed++
	logger.Error("record failed", logfields.Error(err))
	e.console.Println(report.Error, err.Error())
}
