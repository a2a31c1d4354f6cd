package deploy

import (
	"context"

	"github.com/schaermu/filedeploy/internal/compare"
	"github.com/schaermu/filedeploy/internal/manifest"
	"github.com/schaermu/filedeploy/internal/report"
)

const (
	msgMissing    = "The file '%s' does not exist."
	msgSrcMissing = "The source file '%s' does not exist."
	msgDiffers    = "The file '%s' differs from '%s'."
	msgSame       = "The files '%s' and '%s' are the same."
)

// StatusHandler prints one line per record classification. Identical pairs
// are only printed when Verbose is set.
type StatusHandler struct {
	Console *report.Console
	Verbose bool
}

func (h *StatusHandler) Handle(_ context.Context, rec manifest.Record, res compare.Result) (Outcome, error) {
	switch res {
	case compare.SourceMissing:
		h.Console.Printf(report.Error, msgSrcMissing, rec.Source)
	case compare.DestinationMissing:
		h.Console.Printf(report.Missing, msgMissing, rec.Destination)
	case compare.Differ:
		h.Console.Printf(report.Differ, msgDiffers, rec.Source, rec.Destination)
	case compare.Same:
		if !h.Verbose {
			return Skipped, nil
		}
		h.Console.Printf(report.Success, msgSame, rec.Source, rec.Destination)
	}
	return Reported, nil
}

// DiffHandler shows a unified diff for records whose files differ. Every
// other classification is skipped silently.
type DiffHandler struct {
	Console *report.Console
}

func (h *DiffHandler) Handle(_ context.Context, rec manifest.Record, res compare.Result) (Outcome, error) {
	if res != compare.Differ {
		return Skipped, nil
	}

	diff, err := report.UnifiedDiff(rec.Source, rec.Destination)
	if err != nil {
		return Skipped, err
	}

	h.Console.Printf(report.Differ, msgDiffers, rec.Source, rec.Destination)
	if diff == "" {
		// Only the final newline differs.
		h.Console.Println(report.Info, "\\ No newline at end of file")
		return Diffed, nil
	}
	h.Console.Diff(diff)
	return Diffed, nil
}
