// Package session provides session file handling and persistence.
//
// A session file captures what the host serializes for the overlay system:
// the ordered reference records, the selected index, and the global enable
// flag. The overlay core never reads these files.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"refview/internal/overlay"
)

// FileVersion is the current session file format version.
const FileVersion = 1

// Extension is the session file extension.
const Extension = ".refsession"

// File represents a RefView session file.
type File struct {
	Version  int       `json:"version"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`

	Enabled    bool              `json:"enabled"`
	Selected   int               `json:"selected"`
	References []*overlay.Record `json:"references"`
}

// New creates an empty session with overlays enabled.
func New() *File {
	now := time.Now()
	return &File{
		Version:  FileVersion,
		Created:  now,
		Modified: now,
		Enabled:  true,
	}
}

// Load loads a session from a .refsession file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Version > FileVersion {
		return nil, fmt.Errorf("unsupported session version %d", doc.Version)
	}
	return &doc, nil
}

// Save saves the session to a file.
func (f *File) Save(path string) error {
	f.Modified = time.Now()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
