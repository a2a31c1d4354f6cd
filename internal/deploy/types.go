package deploy

import (
	"fmt"
	"log/slog"

	"github.com/schaermu/filedeploy/internal/compare"
)

// Outcome is the terminal state of one record within a run.
type Outcome int

const (
	Skipped Outcome = iota
	Reported
	Diffed
	Installed
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Reported:
		return "reported"
	case Diffed:
		return "diffed"
	case Installed:
		return "installed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Summary tallies one run over a manifest
type Summary struct {
	Results  map[compare.Result]int
	Outcomes map[Outcome]int
	Failed   int // comparison or install failures
	Warnings int // post-install commands that exited non-zero
}

func newSummary() *Summary {
	return &Summary{
		Results:  make(map[compare.Result]int),
		Outcomes: make(map[Outcome]int),
	}
}

// Total returns the number of records that were compared successfully.
func (s *Summary) Total() int {
	n := 0
	for _, c := range s.Results {
		n += c
	}
	return n
}

// LogValue implements slog.LogValuer.
func (s *Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("same", s.Results[compare.Same]),
		slog.Int("differ", s.Results[compare.Differ]),
		slog.Int("destination_missing", s.Results[compare.DestinationMissing]),
		slog.Int("source_missing", s.Results[compare.SourceMissing]),
		slog.Int("installed", s.Outcomes[Installed]),
		slog.Int("failed", s.Failed),
		slog.Int("warnings", s.Warnings),
	)
}
