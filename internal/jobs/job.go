// Package jobs runs colorization asynchronously: the HTTP server stores the
// upload and publishes a task to kafka, a worker consumes it and writes the
// four result images back to storage.
package jobs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/edge-colorizer/internal/colorizer"
	"github.com/Brownie44l1/edge-colorizer/internal/storage"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	ErrNotFound    = errors.New("jobs: job not found")
	ErrInvalidID   = errors.New("jobs: invalid job id")
	ErrUnknownKind = errors.New("jobs: unknown image kind")
)

type Job struct {
	ID           string             `json:"id"`
	Status       Status             `json:"status"`
	Error        string             `json:"error,omitempty"`
	Images       []string           `json:"images,omitempty"`
	Palette      []colorizer.Swatch `json:"palette,omitempty"`
	Colorfulness float64            `json:"colorfulness,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Task is the kafka message body.
type Task struct {
	JobID string `json:"job_id"`
}

// Store lays jobs out as jobs/<id>/job.json, jobs/<id>/input and
// jobs/<id>/<kind>.png.
type Store struct {
	files storage.FileStorage
}

func NewStore(files storage.FileStorage) *Store {
	return &Store{files: files}
}

func jobPath(id string, name string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return path.Join("jobs", id, name), nil
}

// Create stores the uploaded bytes under a fresh id and records the job as
// queued.
func (s *Store) Create(input []byte) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{ID: uuid.New().String(), Status: StatusQueued, CreatedAt: now, UpdatedAt: now}

	p, err := jobPath(job.ID, "input")
	if err != nil {
		return nil, err
	}
	if err := s.files.Save(p, bytes.NewReader(input)); err != nil {
		return nil, fmt.Errorf("failed to store input: %w", err)
	}
	if err := s.Update(job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) Update(job *Job) error {
	p, err := jobPath(job.ID, "job.json")
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := s.files.Save(p, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store job: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (*Job, error) {
	p, err := jobPath(id, "job.json")
	if err != nil {
		return nil, err
	}
	rc, err := s.open(p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var job Job
	if err := json.NewDecoder(rc).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *Store) Input(id string) ([]byte, error) {
	p, err := jobPath(id, "input")
	if err != nil {
		return nil, err
	}
	rc, err := s.open(p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *Store) SaveImage(id, kind string, png []byte) error {
	if !slices.Contains(colorizer.Kinds, kind) {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	p, err := jobPath(id, kind+".png")
	if err != nil {
		return err
	}
	return s.files.Save(p, bytes.NewReader(png))
}

// OpenImage returns a result image; the caller closes it.
func (s *Store) OpenImage(id, kind string) (io.ReadCloser, error) {
	if !slices.Contains(colorizer.Kinds, kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	p, err := jobPath(id, kind+".png")
	if err != nil {
		return nil, err
	}
	return s.open(p)
}

// Delete removes a job together with its input and result images.
func (s *Store) Delete(id string) error {
	p, err := jobPath(id, "job.json")
	if err != nil {
		return err
	}
	if !s.files.Exists(p) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.files.Delete(path.Dir(p)); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

func (s *Store) open(p string) (io.ReadCloser, error) {
	rc, err := s.files.Get(p)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return rc, err
}
