// Package checkpoint persists the resume offset of a batch run so an
// interrupted or failed run can pick up where it stopped.
package checkpoint

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// State is the persisted progress of a run.
type State struct {
	// NextOffset is the 1-based row to start the next run from.
	NextOffset    int       `yaml:"next_offset"`
	RowsRead      int       `yaml:"rows_read"`
	RowsSkipped   int       `yaml:"rows_skipped"`
	ParseErrors   int       `yaml:"parse_errors"`
	GeocodeErrors int       `yaml:"geocode_errors"`
	Loaded        int       `yaml:"loaded"`
	Input         string    `yaml:"input,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at"`
}

// File stores State as YAML at a fixed path.
type File struct {
	path  string
	clock clockwork.Clock
}

// NewFile returns a checkpoint stored at path. A nil clock uses the real clock.
func NewFile(path string, clock clockwork.Clock) *File {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &File{path: path, clock: clock}
}

// Path returns the checkpoint location.
func (f *File) Path() string { return f.path }

// Load reads the checkpoint. A missing file yields the zero State and no error.
func (f *File) Load() (State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, eris.Wrapf(err, "checkpoint: read %s", f.path)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return State{}, eris.Wrapf(err, "checkpoint: decode %s", f.path)
	}
	if s.NextOffset < 0 {
		return State{}, eris.Errorf("checkpoint: %s has negative next_offset %d", f.path, s.NextOffset)
	}
	return s, nil
}

// Save stamps s with the current time and writes it atomically.
func (f *File) Save(s State) error {
	s.UpdatedAt = f.clock.Now().UTC()

	data, err := yaml.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "checkpoint: encode")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "checkpoint: create temp file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrap(err, "checkpoint: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "checkpoint: close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return eris.Wrapf(err, "checkpoint: replace %s", f.path)
	}
	return nil
}
