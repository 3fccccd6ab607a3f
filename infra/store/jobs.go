package store

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/model"
)

// Store is a persistence backend that also holds the job directory.
type Store interface {
	commit.Persistence
	PutJobs(ctx context.Context, jobs []model.Job) error
	Jobs(ctx context.Context) (model.JobMap, error)
	Close() error
}

// Open returns the backend named by backend ("memory" or "sqlite").
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(nil, nil), nil
	case "sqlite":
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

type jobsFile struct {
	Jobs []model.Job `yaml:"jobs"`
}

// ReadJobs decodes a YAML document with a top-level jobs list.
func ReadJobs(r io.Reader) ([]model.Job, error) {
	var f jobsFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	for i, j := range f.Jobs {
		if j.ID == "" {
			return nil, fmt.Errorf("job %d: missing id", i)
		}
	}
	return f.Jobs, nil
}

// SeedJobs loads jobs from a YAML file into s.
func SeedJobs(ctx context.Context, s Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	jobs, err := ReadJobs(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return s.PutJobs(ctx, jobs)
}
