// Package filename extracts series, issue, volume, and year information from
// comic archive filenames such as "Batman v2 012 (of 52) (2012) (Digital).cbz".
package filename

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the information recovered from one filename.
type Parsed struct {
	Series string   `json:"series"`
	Number string   `json:"number,omitempty"`
	Volume string   `json:"volume,omitempty"`
	Year   int      `json:"year,omitempty"`
	Count  int      `json:"count,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	// ParseFailed marks a best-effort result: Series is the cleaned filename
	// and nothing else could be recognised.
	ParseFailed bool `json:"parse_failed,omitempty"`
}

var (
	groupPattern   = regexp.MustCompile(`\(([^()]*)\)|\[([^\[\]]*)\]`)
	yearPattern    = regexp.MustCompile(`^(19|20)\d{2}$`)
	ofCountPattern = regexp.MustCompile(`(?i)^of\s+(\d+)$`)
	trailingOf     = regexp.MustCompile(`(?i)\s+of\s+(\d+)\s*$`)
	volumePattern  = regexp.MustCompile(`(?i)(?:^|\s)(?:v|vol\.?\s*|volume\s+)(\d{1,4})(?:\s|$)`)
	numberPattern  = regexp.MustCompile(`(?i)(?:^|\s)(?:#|no\.?\s*|ch(?:apter)?\.?\s*|issue\s+)?(-?\d+(?:\.\d+)?[a-z]?)\s*$`)
	spaceCollapse  = regexp.MustCompile(`\s+`)
	separatorRunes = strings.NewReplacer("_", " ")
)

const (
	trailingJunk = " -–—:.,#"
	minYear      = 1900
	maxYear      = 2100
)

// Parse extracts what it can from a filename or path. It never fails; an
// unrecognisable name comes back with ParseFailed set.
func Parse(name string) Parsed {
	base := filepath.Base(strings.TrimSpace(name))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	text := separatorRunes.Replace(stem)

	var out Parsed
	text = groupPattern.ReplaceAllStringFunc(text, func(group string) string {
		inner := strings.TrimSpace(group[1 : len(group)-1])
		switch {
		case yearPattern.MatchString(inner) && out.Year == 0:
			if year, err := strconv.Atoi(inner); err == nil && year >= minYear && year <= maxYear {
				out.Year = year
				return " "
			}
		case ofCountPattern.MatchString(inner) && out.Count == 0:
			m := ofCountPattern.FindStringSubmatch(inner)
			out.Count, _ = strconv.Atoi(m[1])
			return " "
		}
		if inner != "" {
			out.Tags = append(out.Tags, inner)
		}
		return " "
	})
	text = collapse(text)

	if m := trailingOf.FindStringSubmatchIndex(text); m != nil && out.Count == 0 {
		out.Count, _ = strconv.Atoi(text[m[2]:m[3]])
		text = collapse(text[:m[0]])
	}

	if m := volumePattern.FindStringSubmatchIndex(text); m != nil {
		out.Volume = trimZeros(text[m[2]:m[3]])
		text = collapse(text[:m[0]] + " " + text[m[1]:])
	}

	if m := numberPattern.FindStringSubmatchIndex(text); m != nil {
		candidate := text[m[2]:m[3]]
		rest := collapse(text[:m[0]])
		// A bare trailing year with nothing else is a year, not an issue.
		if out.Year == 0 && yearPattern.MatchString(candidate) && rest != "" && !strings.HasPrefix(strings.TrimSpace(text[m[0]:m[2]]), "#") {
			year, _ := strconv.Atoi(candidate)
			if year >= minYear && year <= maxYear {
				out.Year = year
				text = rest
				candidate = ""
			}
		}
		if candidate != "" && rest != "" {
			out.Number = trimZeros(strings.TrimPrefix(candidate, "-"))
			if strings.HasPrefix(candidate, "-") {
				out.Number = "-" + out.Number
			}
			text = rest
		}
	}

	out.Series = strings.Trim(collapse(text), trailingJunk)
	if out.Series == "" || (out.Number == "" && out.Volume == "" && out.Year == 0) {
		out.ParseFailed = true
		if out.Series == "" {
			out.Series = strings.Trim(collapse(groupPattern.ReplaceAllString(separatorRunes.Replace(stem), " ")), trailingJunk)
		}
		if out.Series == "" {
			out.Series = stem
		}
	}
	return out
}

func collapse(value string) string {
	return strings.TrimSpace(spaceCollapse.ReplaceAllString(value, " "))
}

// trimZeros turns "001" into "1" and "000" into "0", leaving suffixes intact.
func trimZeros(value string) string {
	trimmed := strings.TrimLeft(value, "0")
	if trimmed == "" || trimmed[0] == '.' || (trimmed[0] < '0' || trimmed[0] > '9') {
		return "0" + trimmed
	}
	return trimmed
}

// NormalizeNumber returns the comparison form of an issue number so that
// "001", "1", and "#1" match.
func NormalizeNumber(value string) string {
	value = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(value), "#")))
	if value == "" {
		return ""
	}
	negative := strings.HasPrefix(value, "-")
	value = strings.TrimPrefix(value, "-")
	value = trimZeros(value)
	if strings.Contains(value, ".") {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			value = strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	if negative {
		return "-" + value
	}
	return value
}
