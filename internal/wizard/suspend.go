package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Suspended is what the wizard must remember across the e-Sign redirect
type Suspended struct {
	Phone         string    `json:"phone"`
	ApplicationID uuid.UUID `json:"application_id"`
	TransactionID string    `json:"transaction_id"`
	ResumeToken   string    `json:"resume_token"`
	CreatedAt     time.Time `json:"created_at"`
}

// SuspendStore keeps the suspend marker somewhere that survives the redirect.
// Get returns nil, nil when nothing is suspended.
type SuspendStore interface {
	Put(ctx context.Context, s Suspended) error
	Get(ctx context.Context) (*Suspended, error)
	Clear(ctx context.Context) error
}

// FileSuspendStore keeps the marker as a JSON file
type FileSuspendStore struct {
	path string
}

// NewFileSuspendStore stores the marker at path
func NewFileSuspendStore(path string) *FileSuspendStore {
	return &FileSuspendStore{path: path}
}

// Put writes the marker atomically
func (f *FileSuspendStore) Put(ctx context.Context, s Suspended) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode suspend marker: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create suspend dir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write suspend marker: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Get reads the marker
func (f *FileSuspendStore) Get(ctx context.Context) (*Suspended, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read suspend marker: %w", err)
	}

	var s Suspended
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode suspend marker: %w", err)
	}
	return &s, nil
}

// Clear removes the marker
func (f *FileSuspendStore) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear suspend marker: %w", err)
	}
	return nil
}
