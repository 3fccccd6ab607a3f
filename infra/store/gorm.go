// Package store implements assignment persistence: an in-memory store for
// previews and tests, and a SQLite store on gorm for the service.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/model"
)

// AssignmentRecord is the persisted row of an assignment.
type AssignmentRecord struct {
	ID           string `gorm:"primaryKey;size:64"`
	JobID        string `gorm:"size:64;index"`
	CrewID       string `gorm:"size:64;index:idx_lane"`
	Date         string `gorm:"size:10;index:idx_lane"`
	StartMinutes int
	EndMinutes   int
	StartAtHQ    bool
	EndAtHQ      bool
	Status       string `gorm:"size:16"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AssignmentRecord) TableName() string { return "assignments" }

// JobRecord is the persisted row of a job.
type JobRecord struct {
	ID      string `gorm:"primaryKey;size:64"`
	Title   string `gorm:"size:255"`
	Address string `gorm:"size:255"`
	Status  string `gorm:"size:32"`
}

func (JobRecord) TableName() string { return "jobs" }

func toRecord(a model.Assignment) AssignmentRecord {
	return AssignmentRecord{
		ID:           a.ID,
		JobID:        a.JobID,
		CrewID:       a.CrewID,
		Date:         string(a.Date),
		StartMinutes: a.StartMinutes,
		EndMinutes:   a.EndMinutes,
		StartAtHQ:    a.StartAtHQ,
		EndAtHQ:      a.EndAtHQ,
		Status:       string(a.Status),
	}
}

func (r AssignmentRecord) toModel() model.Assignment {
	return model.Assignment{
		ID:           r.ID,
		JobID:        r.JobID,
		CrewID:       r.CrewID,
		Date:         model.DayKey(r.Date),
		StartMinutes: r.StartMinutes,
		EndMinutes:   r.EndMinutes,
		StartAtHQ:    r.StartAtHQ,
		EndAtHQ:      r.EndAtHQ,
		Status:       model.Status(r.Status),
	}
}

// GormStore persists assignments and jobs in SQLite.
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*GormStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return NewGormStore(db)
}

// NewGormStore migrates db and wraps it.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&AssignmentRecord{}, &JobRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Create assigns a server id and inserts the assignment.
func (s *GormStore) Create(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	rec := toRecord(a)
	rec.ID = "asg-" + uuid.NewString()
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Assignment{}, err
	}
	return rec.toModel(), nil
}

// Update overwrites the stored row. It returns commit.ErrNotFound when the
// id does not exist.
func (s *GormStore) Update(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	var existing AssignmentRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&existing, "id = ?", a.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return commit.ErrNotFound
			}
			return err
		}
		rec := toRecord(a)
		rec.CreatedAt = existing.CreatedAt
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		existing = rec
		return nil
	})
	if err != nil {
		return model.Assignment{}, err
	}
	return existing.toModel(), nil
}

// Delete removes the row, returning commit.ErrNotFound when it was absent.
func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&AssignmentRecord{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return commit.ErrNotFound
	}
	return nil
}

// List returns the assignments of day ordered by crew and start.
func (s *GormStore) List(ctx context.Context, day model.DayKey) ([]model.Assignment, error) {
	var recs []AssignmentRecord
	if err := s.db.WithContext(ctx).Where("date = ?", string(day)).Order("crew_id, start_minutes, id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.Assignment, len(recs))
	for i, r := range recs {
		out[i] = r.toModel()
	}
	return out, nil
}

// PutJobs inserts or replaces jobs.
func (s *GormStore) PutJobs(ctx context.Context, jobs []model.Job) error {
	if len(jobs) == 0 {
		return nil
	}
	recs := make([]JobRecord, len(jobs))
	for i, j := range jobs {
		recs[i] = JobRecord{ID: j.ID, Title: j.Title, Address: string(j.Address), Status: j.Status}
	}
	return s.db.WithContext(ctx).Save(&recs).Error
}

// Jobs loads every job into a directory.
func (s *GormStore) Jobs(ctx context.Context) (model.JobMap, error) {
	var recs []JobRecord
	if err := s.db.WithContext(ctx).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make(model.JobMap, len(recs))
	for _, r := range recs {
		out[r.ID] = model.Job{ID: r.ID, Title: r.Title, Address: model.Address(r.Address), Status: r.Status}
	}
	return out, nil
}

// Close closes the underlying connection.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
