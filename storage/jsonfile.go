package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ptgott/e2ekit/user"
)

// JSONFile stores recorded users as a single JSON array. Every Append reads
// and rewrites the whole file. The mutex only serializes writers of the same
// process: two processes appending at once can lose an update.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

// NewJSONFile returns a JSONFile at path. Nothing is created until the first
// Append.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path is the location of the JSON file.
func (f *JSONFile) Path() string {
	return f.path
}

// Append creates the file with an empty array if needed, then adds u.
func (f *JSONFile) Append(u user.RecordedTestUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensure(); err != nil {
		return err
	}
	users, err := f.read()
	if err != nil {
		return err
	}
	users = append(users, u)

	b, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("can't encode the recorded users: %w", err)
	}
	if err := os.WriteFile(f.path, b, 0o644); err != nil {
		return fmt.Errorf("can't write %s: %w", f.path, err)
	}
	return nil
}

// Users returns the recorded users. A missing file is an empty log.
func (f *JSONFile) Users() ([]user.RecordedTestUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Close is a no-op.
func (f *JSONFile) Close() error {
	return nil
}

func (f *JSONFile) ensure() error {
	_, err := os.Stat(f.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("can't stat %s: %w", f.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("can't create the log directory: %w", err)
	}
	if err := os.WriteFile(f.path, []byte("[]"), 0o644); err != nil {
		return fmt.Errorf("can't create %s: %w", f.path, err)
	}
	return nil
}

func (f *JSONFile) read() ([]user.RecordedTestUser, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", f.path, err)
	}
	var users []user.RecordedTestUser
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("%s is not a JSON array of users: %w", f.path, err)
	}
	return users, nil
}
