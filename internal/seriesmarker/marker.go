// Package seriesmarker reads and writes the series.json file that records
// which published series a library folder holds.
package seriesmarker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileName is the marker's name inside a series folder.
const FileName = "series.json"

const currentVersion = "1.0"

// Marker identifies the series a folder belongs to.
type Marker struct {
	Version  string   `json:"version"`
	Metadata Metadata `json:"metadata"`
}

// Metadata is the descriptive payload stored in the marker.
type Metadata struct {
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Publisher   string    `json:"publisher,omitempty"`
	Year        int       `json:"year,omitempty"`
	TotalIssues int       `json:"total_issues,omitempty"`
	Description string    `json:"description_text,omitempty"`
	Source      string    `json:"source"`
	SourceID    string    `json:"source_id"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Path returns the marker location for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Read loads the marker in dir. found is false when no marker exists.
func Read(dir string) (*Marker, bool, error) {
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read series marker: %w", err)
	}
	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, false, fmt.Errorf("decode series marker %s: %w", Path(dir), err)
	}
	if strings.TrimSpace(marker.Metadata.Source) == "" || strings.TrimSpace(marker.Metadata.SourceID) == "" {
		return nil, false, fmt.Errorf("series marker %s: missing source identity", Path(dir))
	}
	return &marker, true, nil
}

// Write stores marker in dir, replacing any existing file atomically.
func Write(dir string, marker Marker) error {
	if strings.TrimSpace(marker.Metadata.Source) == "" || strings.TrimSpace(marker.Metadata.SourceID) == "" {
		return errors.New("series marker requires source and source_id")
	}
	if marker.Version == "" {
		marker.Version = currentVersion
	}
	if marker.Metadata.Type == "" {
		marker.Metadata.Type = "comicSeries"
	}
	if marker.Metadata.UpdatedAt.IsZero() {
		marker.Metadata.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("encode series marker: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".series-*.json")
	if err != nil {
		return fmt.Errorf("create series marker: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write series marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close series marker: %w", err)
	}
	if err := os.Rename(tmpPath, Path(dir)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace series marker: %w", err)
	}
	return nil
}
