// Package migrate imports the legacy standalone mapping file into the
// configuration-backed binding table. The migration runs at most once; a
// flag in the configuration records completion.
package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/config"
)

// Report summarizes one migration run.
type Report struct {
	Migrated int
	Failures []string
	Skipped  bool
}

type legacyEntry struct {
	Function    string `json:"llm_function"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
}

// Run imports bindings from the legacy mapping file at legacyPath. Per-entry
// failures are collected, not fatal: valid entries still migrate. The
// completion flag is set even when some entries failed, so the run never
// repeats; only a failure to persist the flag itself is returned as an error.
func Run(cfg *config.Provider, store *binding.Store, legacyPath string) (Report, error) {
	snap := cfg.Snapshot()
	if !snap.Compat.AutoMigrateLegacy || snap.Compat.MigrationDone {
		return Report{Skipped: true}, nil
	}

	raw, err := os.ReadFile(legacyPath)
	if errors.Is(err, os.ErrNotExist) {
		// Nothing to migrate; remember that so we never look again.
		if err := markDone(cfg); err != nil {
			return Report{}, err
		}
		return Report{Skipped: true}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("reading legacy mappings: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Report{}, fmt.Errorf("parsing legacy mappings: %w", err)
	}

	var rep Report
	for command, body := range entries {
		var e legacyEntry
		if err := json.Unmarshal(body, &e); err != nil {
			rep.Failures = append(rep.Failures, fmt.Sprintf("%s: %v", command, err))
			continue
		}
		b := binding.Binding{
			CommandName:  binding.NormalizeName(command),
			FunctionName: e.Function,
			Description:  e.Description,
			Group:        "legacy",
			Enabled:      true,
			CreatedAt:    e.CreatedAt,
		}
		if err := store.Add(b); err != nil {
			rep.Failures = append(rep.Failures, fmt.Sprintf("%s: %v", command, err))
			continue
		}
		rep.Migrated++
	}

	if snap.Compat.KeepLegacyBackup {
		if err := os.WriteFile(legacyPath+".bak", raw, 0o600); err != nil {
			slog.Warn("migrate: backup failed", "path", legacyPath+".bak", "error", err)
		}
	}

	if err := markDone(cfg); err != nil {
		return rep, err
	}
	slog.Info("migrate: legacy import complete",
		"migrated", rep.Migrated, "failed", len(rep.Failures))
	return rep, nil
}

func markDone(cfg *config.Provider) error {
	return cfg.Update(func(c *config.Config) error {
		c.Compat.MigrationDone = true
		return nil
	})
}
