// Package apply writes approved change sets into comic archives.
//
// Every file is handled independently: a failed conversion or write is
// recorded against that file and the run moves on. Files with nothing
// pending are never opened for writing.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"shortbox/internal/changeset"
	"shortbox/internal/comicinfo"
	"shortbox/internal/jobstore"
	"shortbox/internal/logging"
	"shortbox/internal/seriesmarker"
	"shortbox/internal/sources"
)

// Marker asks for a series marker to be written into a group's folder once
// at least one of its files was written.
type Marker struct {
	Folder string
	Series sources.SeriesMatch
}

// Request is the input of one apply run.
type Request struct {
	ChangeSets []changeset.ChangeSet
	Markers    []Marker
}

// ProgressFunc receives progress updates. It is called synchronously.
type ProgressFunc func(jobstore.ApplyProgress)

// Executor writes metadata through a comicinfo.ReadWriter.
type Executor struct {
	files         comicinfo.ReadWriter
	logger        *slog.Logger
	createMarkers bool
	now           func() time.Time
}

// Options configures an Executor.
type Options struct {
	CreateSeriesMarker bool
	Logger             *slog.Logger
}

// New constructs an Executor.
func New(files comicinfo.ReadWriter, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		files:         files,
		logger:        logging.NewComponentLogger(logger, "apply"),
		createMarkers: opts.CreateSeriesMarker,
		now:           time.Now,
	}
}

// Pending returns the change sets apply would write.
func Pending(sets []changeset.ChangeSet) []changeset.ChangeSet {
	var out []changeset.ChangeSet
	for _, cs := range sets {
		if cs.Pending() {
			out = append(out, cs)
		}
	}
	return out
}

// Run applies every pending change set. Cancellation stops before the next
// file; files not reached are reported as failed.
func (e *Executor) Run(ctx context.Context, req Request, progress ProgressFunc) jobstore.ApplyResult {
	logger := logging.WithContext(ctx, e.logger)
	report := func(p jobstore.ApplyProgress) {
		if progress != nil {
			progress(p)
		}
	}

	pending := Pending(req.ChangeSets)
	result := jobstore.ApplyResult{Files: make([]jobstore.FileResult, 0, len(pending))}
	total := len(pending)
	written := make(map[string]bool)

	for i, cs := range pending {
		if err := ctx.Err(); err != nil {
			for _, rest := range pending[i:] {
				result.Add(jobstore.FileResult{FileID: rest.FileID, Path: rest.Path, Error: "cancelled"})
			}
			logger.Warn("apply cancelled", logging.Int("remaining", total-i))
			break
		}
		path, err := e.applyOne(cs, func(phase jobstore.ApplyPhase, path string) {
			report(jobstore.ApplyProgress{Phase: phase, Current: i + 1, Total: total, FileID: cs.FileID, Path: path})
		})
		fr := jobstore.FileResult{FileID: cs.FileID, Path: path, Success: err == nil}
		if err != nil {
			fr.Error = err.Error()
			logger.Warn("apply failed for file",
				logging.FileID(cs.FileID),
				logging.String("path", path),
				logging.Error(err),
			)
		} else {
			written[filepath.Dir(path)] = true
			logger.Debug("metadata written",
				logging.FileID(cs.FileID),
				logging.String("path", path),
			)
		}
		result.Add(fr)
	}

	if e.createMarkers && ctx.Err() == nil {
		for _, m := range req.Markers {
			if !written[filepath.Clean(m.Folder)] {
				continue
			}
			report(jobstore.ApplyProgress{Phase: jobstore.PhaseMarker, Current: total, Total: total, Path: seriesmarker.Path(m.Folder)})
			if err := seriesmarker.Write(m.Folder, e.marker(m.Series)); err != nil {
				result.Warnings = append(result.Warnings, fmt.Sprintf("series marker for %s: %v", m.Folder, err))
				logger.Warn("series marker write failed", logging.String("folder", m.Folder), logging.Error(err))
			}
		}
	}

	report(jobstore.ApplyProgress{Phase: jobstore.PhaseDone, Current: total, Total: total})
	logger.Info("apply finished",
		logging.Int("successful", result.Successful),
		logging.Int("failed", result.Failed),
	)
	return result
}

func (e *Executor) applyOne(cs changeset.ChangeSet, phase func(jobstore.ApplyPhase, string)) (string, error) {
	path := cs.Path
	if path == "" {
		return path, errors.New("file has no path")
	}
	if conv, ok := e.files.(comicinfo.Converter); ok && conv.NeedsConversion(path) {
		phase(jobstore.PhaseConverting, path)
		converted, err := conv.Convert(path)
		if err != nil {
			return path, fmt.Errorf("convert format: %w", err)
		}
		path = converted
	}

	phase(jobstore.PhaseWriting, path)
	md, _, err := e.files.Read(path)
	if err != nil {
		return path, fmt.Errorf("read metadata: %w", err)
	}
	for _, fc := range cs.Fields {
		if fc.Pending() {
			md.Set(fc.Field, fc.Final())
		}
	}
	if err := e.files.Write(path, md); err != nil {
		return path, fmt.Errorf("write metadata: %w", err)
	}
	return path, nil
}

func (e *Executor) marker(series sources.SeriesMatch) seriesmarker.Marker {
	return seriesmarker.Marker{Metadata: seriesmarker.Metadata{
		Name:        series.Name,
		Publisher:   series.Publisher,
		Year:        series.StartYear,
		TotalIssues: series.IssueCount,
		Description: series.Description,
		Source:      series.Source,
		SourceID:    series.SourceID,
		UpdatedAt:   e.now().UTC(),
	}}
}
