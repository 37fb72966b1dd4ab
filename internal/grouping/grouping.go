// Package grouping partitions a batch of comic files into series groups from
// their filenames alone, before any metadata source is consulted.
package grouping

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"shortbox/internal/filename"
	"shortbox/internal/seriesmarker"
	"shortbox/internal/textutil"
)

// File is one input file.
type File struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// Member is a grouped file with its parse result.
type Member struct {
	ID       string          `json:"id"`
	Path     string          `json:"path"`
	Filename string          `json:"filename"`
	Parsed   filename.Parsed `json:"parsed"`
}

// Query is the synthesized search for a group.
type Query struct {
	Series string `json:"series"`
	Year   int    `json:"year,omitempty"`
	// Count is the "(of N)" total when every member agrees on it.
	Count int `json:"count,omitempty"`
}

// String renders the query as free text.
func (q Query) String() string {
	if q.Year > 0 {
		return q.Series + " (" + strconv.Itoa(q.Year) + ")"
	}
	return q.Series
}

// Group is a cluster of files believed to belong to one series.
type Group struct {
	Key         string               `json:"key"`
	Name        string               `json:"name"`
	Folder      string               `json:"folder"`
	Query       Query                `json:"query"`
	Members     []Member             `json:"members"`
	ParseFailed bool                 `json:"parse_failed,omitempty"`
	Marker      *seriesmarker.Marker `json:"marker,omitempty"`
}

// Folders lists the distinct parent folders of the group's members.
func (g Group) Folders() []string {
	var out []string
	for _, m := range g.Members {
		if dir := filepath.Dir(m.Path); !slices.Contains(out, dir) {
			out = append(out, dir)
		}
	}
	return out
}

// Options controls grouping.
type Options struct {
	// MixedSeries disables folder markers: every file is grouped by its own
	// parse result even inside a folder that has a series.json.
	MixedSeries bool
	// ReadMarker overrides seriesmarker.Read, mainly for tests.
	ReadMarker func(dir string) (*seriesmarker.Marker, bool, error)
}

// Result is the grouping output. Warnings name files that could only be
// grouped on a best-effort basis, plus unreadable markers.
type Result struct {
	Groups   []Group  `json:"groups"`
	Warnings []string `json:"warnings,omitempty"`
}

// Partition groups files by normalized series name and year. Files without
// a year join the single same-named group that has one, when exactly one
// exists. Groups come back ordered by folder, then name.
func Partition(files []File, opts Options) Result {
	readMarker := opts.ReadMarker
	if readMarker == nil {
		readMarker = seriesmarker.Read
	}

	var (
		res     Result
		byKey   = make(map[string]*Group)
		order   []string
		markers = make(map[string]*seriesmarker.Marker)
		yearly  []Member
	)
	add := func(key string, seed func() Group, m Member) {
		g, ok := byKey[key]
		if !ok {
			fresh := seed()
			fresh.Key = key
			g = &fresh
			byKey[key] = g
			order = append(order, key)
		}
		g.Members = append(g.Members, m)
	}

	for _, f := range files {
		m := Member{ID: f.ID, Path: f.Path, Filename: filepath.Base(f.Path), Parsed: filename.Parse(f.Path)}
		dir := filepath.Dir(f.Path)

		if !opts.MixedSeries {
			marker, seen := markers[dir]
			if !seen {
				found, ok, err := readMarker(dir)
				if err != nil {
					res.Warnings = append(res.Warnings, fmt.Sprintf("ignoring series marker in %s: %v", dir, err))
				}
				if ok {
					marker = found
				}
				markers[dir] = marker
			}
			if marker != nil {
				add("marker|"+dir, func() Group {
					return Group{
						Name:   marker.Metadata.Name,
						Folder: dir,
						Query:  Query{Series: marker.Metadata.Name, Year: marker.Metadata.Year},
						Marker: marker,
					}
				}, m)
				continue
			}
		}

		if m.Parsed.ParseFailed {
			res.Warnings = append(res.Warnings, fmt.Sprintf("could not parse %q; grouped as %q", m.Filename, m.Parsed.Series))
		}
		if m.Parsed.Year == 0 {
			yearly = append(yearly, m)
			continue
		}
		add(seriesKey(m.Parsed.Series, m.Parsed.Year), seedFrom(m), m)
	}

	for _, m := range yearly {
		name := textutil.Key(m.Parsed.Series)
		var candidates []string
		for _, key := range order {
			if strings.HasPrefix(key, "series|"+name+"|") && !strings.HasSuffix(key, "|0") {
				candidates = append(candidates, key)
			}
		}
		key := seriesKey(m.Parsed.Series, 0)
		if len(candidates) == 1 {
			key = candidates[0]
		}
		add(key, seedFrom(m), m)
	}

	for _, key := range order {
		g := byKey[key]
		finish(g)
		res.Groups = append(res.Groups, *g)
	}
	slices.SortStableFunc(res.Groups, func(a, b Group) int {
		if c := strings.Compare(a.Folder, b.Folder); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return res
}

func seriesKey(series string, year int) string {
	return "series|" + textutil.Key(series) + "|" + strconv.Itoa(year)
}

func seedFrom(m Member) func() Group {
	return func() Group {
		return Group{
			Name:   displayName(m.Parsed.Series),
			Folder: filepath.Dir(m.Path),
			Query:  Query{Series: m.Parsed.Series, Year: m.Parsed.Year},
		}
	}
}

// finish sorts members and fills group-level fields derived from them.
func finish(g *Group) {
	slices.SortStableFunc(g.Members, func(a, b Member) int {
		return strings.Compare(strings.ToLower(a.Filename), strings.ToLower(b.Filename))
	})
	failed := true
	count := -1
	for _, m := range g.Members {
		if !m.Parsed.ParseFailed {
			failed = false
		}
		switch {
		case count == -1:
			count = m.Parsed.Count
		case count != m.Parsed.Count:
			count = 0
		}
		if g.Query.Year == 0 && m.Parsed.Year > 0 && g.Marker == nil {
			g.Query.Year = m.Parsed.Year
		}
	}
	g.ParseFailed = failed && g.Marker == nil
	if g.Marker == nil && count > 0 {
		g.Query.Count = count
	}
	if g.Query.Year > 0 && g.Marker == nil {
		g.Name = displayName(g.Query.Series) + " (" + strconv.Itoa(g.Query.Year) + ")"
	}
}

// displayName title-cases all-lowercase names so "saga" reads "Saga".
func displayName(series string) string {
	if series == strings.ToLower(series) {
		return textutil.TitleCase(series)
	}
	return series
}
