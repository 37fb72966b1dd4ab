package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const pollInterval = 250 * time.Millisecond

// Entry is one decoded job log record.
type Entry struct {
	Time    string         `json:"ts,omitempty"`
	Level   string         `json:"level,omitempty"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Query selects entries from a log file.
type Query struct {
	// Offset is a byte position from a previous Page. Negative reads the
	// last Limit entries.
	Offset int64
	Limit  int
	// MinLevel drops entries below debug, info, warn, or error.
	MinLevel string
	// Wait, when positive, blocks up to this long for new entries if none
	// are available at Offset.
	Wait time.Duration
}

// Page is a batch of entries and the offset to continue from.
type Page struct {
	Entries []Entry `json:"entries"`
	Offset  int64   `json:"offset"`
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// Read returns entries from path. A missing file is an empty page.
func Read(ctx context.Context, path string, q Query) (Page, error) {
	page, err := read(path, q)
	if err != nil || len(page.Entries) > 0 || q.Wait <= 0 {
		return page, err
	}

	deadline := time.Now().Add(q.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	next := Query{Offset: page.Offset, Limit: q.Limit, MinLevel: q.MinLevel}
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return page, ctx.Err()
		case <-ticker.C:
		}
		page, err = read(path, next)
		if err != nil || len(page.Entries) > 0 {
			return page, err
		}
		next.Offset = page.Offset
	}
	return page, nil
}

func read(path string, q Query) (Page, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Page{}, nil
		}
		return Page{}, fmt.Errorf("open job log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Page{}, fmt.Errorf("stat job log: %w", err)
	}
	tail := q.Offset < 0
	start := q.Offset
	if tail || start > info.Size() {
		// A negative offset tails; one past the end means the file was replaced.
		start = 0
	}
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return Page{}, fmt.Errorf("seek job log: %w", err)
	}

	page := Page{Offset: start}
	reader := bufio.NewReader(file)
	for tail || q.Limit <= 0 || len(page.Entries) < q.Limit {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is left for the next read.
			break
		}
		if err != nil {
			return Page{}, fmt.Errorf("read job log: %w", err)
		}
		page.Offset += int64(len(line))
		entry, ok := decode(line)
		if !ok || !passes(entry, q.MinLevel) {
			continue
		}
		page.Entries = append(page.Entries, entry)
		if tail && q.Limit > 0 && len(page.Entries) > q.Limit {
			page.Entries = page.Entries[1:]
		}
	}
	return page, nil
}

func decode(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Entry{}, false
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{Message: line}, true
	}
	entry := Entry{}
	entry.Time, _ = raw["ts"].(string)
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	delete(raw, "ts")
	delete(raw, "level")
	delete(raw, "msg")
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}

func passes(entry Entry, minLevel string) bool {
	want, ok := levelRank[strings.ToLower(strings.TrimSpace(minLevel))]
	if !ok {
		return true
	}
	have, ok := levelRank[entry.Level]
	return !ok || have >= want
}
