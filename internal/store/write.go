package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/fcrcheck/internal/diag"
	"github.com/roach88/fcrcheck/internal/ir"
)

// Run is one recorded analysis.
type Run struct {
	ID            string            `json:"id"`
	Seq           int64             `json:"seq"`
	Fingerprint   string            `json:"fingerprint"`
	EngineVersion string            `json:"engine_version"`
	IRVersion     string            `json:"ir_version"`
	OK            bool              `json:"ok"`
	DiagCount     int               `json:"diag_count"`
	Source        string            `json:"source"`
	Diagnostics   []diag.Diagnostic `json:"diagnostics,omitempty"`
}

// NewRun fills the version fields of a run from the current engine.
func NewRun(id, source, fingerprint string, diags []diag.Diagnostic) Run {
	return Run{
		ID:            id,
		Fingerprint:   fingerprint,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Source:        source,
		Diagnostics:   diags,
	}
}

// WriteRun inserts a run and its diagnostics in one transaction and
// returns the run with its assigned seq. OK and DiagCount are derived
// from Diagnostics.
//
// Uses ON CONFLICT DO NOTHING for idempotency: writing an existing run
// ID leaves the stored run untouched and returns it.
func (s *Store) WriteRun(ctx context.Context, run Run) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, fingerprint, engine_version, ir_version, ok, diag_count, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		run.Fingerprint,
		run.EngineVersion,
		run.IRVersion,
		len(run.Diagnostics) == 0,
		len(run.Diagnostics),
		run.Source,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := tx.Commit(); err != nil {
			return Run{}, fmt.Errorf("write run: %w", err)
		}
		return s.ReadRun(ctx, run.ID)
	}

	for i, d := range run.Diagnostics {
		chain, err := json.Marshal(append([]string{}, d.Chain...))
		if err != nil {
			return Run{}, fmt.Errorf("write run: diagnostic %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO diagnostics
			(run_id, idx, code, kind, file, line, col, function, message, chain)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, idx) DO NOTHING
		`,
			run.ID,
			i,
			d.Code,
			string(d.Kind),
			d.Pos.File,
			d.Pos.Line,
			d.Pos.Col,
			d.Function,
			d.Message,
			string(chain),
		)
		if err != nil {
			return Run{}, fmt.Errorf("write run: diagnostic %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	run.Seq = seq
	run.OK = len(run.Diagnostics) == 0
	run.DiagCount = len(run.Diagnostics)
	return run, nil
}
