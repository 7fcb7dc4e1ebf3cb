package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/config"
)

const legacyFixture = `{
  "rmd ls": {"llm_function": "rmd_ls", "description": "List reminders", "created_at": "2024-01-02T03:04:05Z"},
  "sys info": {"llm_function": "sys_info", "description": "System info"},
  "broken": 42
}`

func newTestEnv(t *testing.T) (*config.Provider, *binding.Store, string) {
	t.Helper()
	dir := t.TempDir()
	provider, err := config.NewProvider(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return provider, binding.NewStore(provider), filepath.Join(dir, "command_mappings.json")
}

func TestRun_ImportsValidEntriesAndCollectsFailures(t *testing.T) {
	provider, store, legacyPath := newTestEnv(t)
	if err := os.WriteFile(legacyPath, []byte(legacyFixture), 0o600); err != nil {
		t.Fatal(err)
	}

	rep, err := Run(provider, store, legacyPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Skipped {
		t.Fatal("first run must not be skipped")
	}
	if rep.Migrated != 2 {
		t.Errorf("Migrated = %d, want 2", rep.Migrated)
	}
	if len(rep.Failures) != 1 {
		t.Errorf("Failures = %v, want 1 entry", rep.Failures)
	}

	b, err := store.Get("rmd ls")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.CommandName != "rmd--ls" {
		t.Errorf("CommandName = %q, want storage form", b.CommandName)
	}
	if b.FunctionName != "rmd_ls" || b.Group != "legacy" || !b.Enabled {
		t.Errorf("binding = %+v", b)
	}
	if b.CreatedAt != "2024-01-02T03:04:05Z" {
		t.Errorf("CreatedAt = %q, legacy timestamp must carry over", b.CreatedAt)
	}
}

func TestRun_WritesBackupAndSetsDoneFlag(t *testing.T) {
	provider, store, legacyPath := newTestEnv(t)
	if err := os.WriteFile(legacyPath, []byte(legacyFixture), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(provider, store, legacyPath); err != nil {
		t.Fatalf("Run: %v", err)
	}

	backup, err := os.ReadFile(legacyPath + ".bak")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(backup) != legacyFixture {
		t.Error("backup must be a byte copy of the legacy file")
	}
	if !provider.Snapshot().Compat.MigrationDone {
		t.Error("migrationDone flag not set")
	}
}

func TestRun_SecondRunIsSkipped(t *testing.T) {
	provider, store, legacyPath := newTestEnv(t)
	if err := os.WriteFile(legacyPath, []byte(legacyFixture), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(provider, store, legacyPath); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	rep, err := Run(provider, store, legacyPath)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !rep.Skipped || rep.Migrated != 0 {
		t.Errorf("second run = %+v, want skipped", rep)
	}
	if got := len(store.List(binding.FilterAll)); got != 2 {
		t.Errorf("table grew on repeat run: %d entries", got)
	}
}

func TestRun_MissingLegacyFileMarksDone(t *testing.T) {
	provider, store, legacyPath := newTestEnv(t)

	rep, err := Run(provider, store, legacyPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Skipped {
		t.Error("missing file should be a skip")
	}
	if !provider.Snapshot().Compat.MigrationDone {
		t.Error("migrationDone should be set so the lookup never repeats")
	}
}

func TestRun_DisabledByConfig(t *testing.T) {
	provider, store, legacyPath := newTestEnv(t)
	if err := os.WriteFile(legacyPath, []byte(legacyFixture), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := provider.Update(func(c *config.Config) error {
		c.Compat.AutoMigrateLegacy = false
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	rep, err := Run(provider, store, legacyPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !rep.Skipped || len(store.List(binding.FilterAll)) != 0 {
		t.Errorf("rep = %+v, table = %d entries", rep, len(store.List(binding.FilterAll)))
	}
}

func TestRun_NoBackupWhenDisabled(t *testing.T) {
	provider, store, legacyPath := newTestEnv(t)
	if err := os.WriteFile(legacyPath, []byte(legacyFixture), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := provider.Update(func(c *config.Config) error {
		c.Compat.KeepLegacyBackup = false
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(provider, store, legacyPath); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(legacyPath + ".bak"); !os.IsNotExist(err) {
		t.Errorf("backup should not exist, stat err = %v", err)
	}
}
