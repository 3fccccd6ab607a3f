package scenarios

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/crewsched/core/model"
)

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no scenario files")
	}
	for _, f := range files {
		sc, err := Load(f)
		if err != nil {
			t.Fatalf("load %s: %v", f, err)
		}
		t.Run(sc.Name, func(t *testing.T) {
			if err := Verify(context.Background(), sc, nil); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestEngineTimelineResolvesTravel(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "travel_gaps.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e, err := NewEngine(sc, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	tl, err := e.Timeline(context.Background(), "crew-a", "")
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(tl.Missing) != 0 {
		t.Fatalf("legs still pending: %v", tl.Missing)
	}
	// the first job and the travel after it coalesce
	if len(tl.Blocks) != 2 {
		t.Fatalf("expected two blocks, got %+v", tl.Blocks)
	}
	if b := tl.Blocks[0]; b.StartMinutes != 180 || b.EndMinutes != 270 || b.Kind != model.BlockTravel {
		t.Fatalf("unexpected first block %+v", b)
	}
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	dir := t.TempDir()
	cases := map[string]string{
		"syntax.yaml":    ":",
		"day.yaml":       "day: tomorrow\n",
		"duplicate.yaml": "day: 2025-06-02\nassignments:\n  - {id: a, job_id: j}\n  - {id: a, job_id: k}\n",
		"noid.yaml":      "day: 2025-06-02\nassignments:\n  - {job_id: j}\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
