package scenario_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

func TestLoadDir(t *testing.T) {
	store, err := scenario.LoadDir(filepath.Join("testdata", "scenarios"))
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (broken file skipped)", store.Len())
	}

	sc, err := store.GetScenario(context.Background(), "difficult-customer")
	if err != nil {
		t.Fatalf("GetScenario() error = %v", err)
	}
	if sc.MaxAttempts != 3 || len(sc.Decisions) != 3 {
		t.Errorf("scenario = %+v", sc)
	}
	if got := sc.Decisions[0].Choices[1].BranchType; got != scenario.BranchFailure {
		t.Errorf("mixed-case branch type = %q, want failure", got)
	}
	if got := sc.Decisions[2].Choices[1].BranchType; got != scenario.BranchUnknown {
		t.Errorf("unrecognised branch type = %q, want unknown", got)
	}

	wire, err := store.GetScenario(context.Background(), "42")
	if err != nil {
		t.Fatalf("GetScenario(42) error = %v", err)
	}
	if wire.MaxAttempts != 2 || wire.Decisions[1].Level != 2 {
		t.Errorf("wire scenario = %+v", wire)
	}

	if _, err := store.GetScenario(context.Background(), "nope"); !errors.Is(err, scenario.ErrNotFound) {
		t.Errorf("GetScenario(nope) error = %v, want ErrNotFound", err)
	}
}

func TestLoadDir_MissingDir(t *testing.T) {
	if _, err := scenario.LoadDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("LoadDir() should fail for a missing directory")
	}
}

func TestLoadFile_Unsupported(t *testing.T) {
	if _, err := scenario.LoadFile(filepath.Join("testdata", "scenarios", "notes.txt")); err == nil {
		t.Fatal("LoadFile() should fail")
	}
}

func TestMemoryStore_All(t *testing.T) {
	store := scenario.NewMemoryStore(scenario.Scenario{ID: "b"}, scenario.Scenario{ID: "a"})
	all := store.All()
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Errorf("All() = %+v, want sorted a, b", all)
	}
}
