package extraction

import (
	"context"
	"log/slog"

	"github.com/jlagdameo/gastos-bot/internal/expense"
)

// Merger applies free-form edit instructions to pending records.
type Merger struct {
	provider Provider
}

// NewMerger creates a new Merger instance.
func NewMerger(provider Provider) *Merger {
	return &Merger{provider: provider}
}

// ApplyEdit produces the record updated per instruction. Any failure to
// obtain or parse a valid response is a no-op: the original record comes back
// unchanged, so a misunderstood edit can never corrupt or discard pending
// data.
func (m *Merger) ApplyEdit(ctx context.Context, rec expense.Record, instruction string) expense.Record {
	raw, err := m.provider.GenerateText(ctx, editPrompt(rec, instruction))
	if err != nil {
		slog.Error("Edit call failed, keeping record unchanged", "error", err)
		return rec
	}
	slog.Debug("Edit response", "response", raw)

	updated, err := parseRecord(raw)
	if err != nil {
		slog.Error("Edit response unparseable, keeping record unchanged", "error", err)
		return rec
	}
	return updated
}
