package comicinfo

import "strings"

// Metadata holds one value per schema field. The empty string means the
// field is absent.
type Metadata struct {
	Title               string `json:"title,omitempty" xml:"Title,omitempty"`
	Series              string `json:"series,omitempty" xml:"Series,omitempty"`
	Number              string `json:"number,omitempty" xml:"Number,omitempty"`
	Count               string `json:"count,omitempty" xml:"Count,omitempty"`
	Volume              string `json:"volume,omitempty" xml:"Volume,omitempty"`
	AlternateSeries     string `json:"alternate_series,omitempty" xml:"AlternateSeries,omitempty"`
	AlternateNumber     string `json:"alternate_number,omitempty" xml:"AlternateNumber,omitempty"`
	AlternateCount      string `json:"alternate_count,omitempty" xml:"AlternateCount,omitempty"`
	Summary             string `json:"summary,omitempty" xml:"Summary,omitempty"`
	Notes               string `json:"notes,omitempty" xml:"Notes,omitempty"`
	Year                string `json:"year,omitempty" xml:"Year,omitempty"`
	Month               string `json:"month,omitempty" xml:"Month,omitempty"`
	Day                 string `json:"day,omitempty" xml:"Day,omitempty"`
	Writer              string `json:"writer,omitempty" xml:"Writer,omitempty"`
	Penciller           string `json:"penciller,omitempty" xml:"Penciller,omitempty"`
	Inker               string `json:"inker,omitempty" xml:"Inker,omitempty"`
	Colorist            string `json:"colorist,omitempty" xml:"Colorist,omitempty"`
	Letterer            string `json:"letterer,omitempty" xml:"Letterer,omitempty"`
	CoverArtist         string `json:"cover_artist,omitempty" xml:"CoverArtist,omitempty"`
	Editor              string `json:"editor,omitempty" xml:"Editor,omitempty"`
	Translator          string `json:"translator,omitempty" xml:"Translator,omitempty"`
	Publisher           string `json:"publisher,omitempty" xml:"Publisher,omitempty"`
	Imprint             string `json:"imprint,omitempty" xml:"Imprint,omitempty"`
	Genre               string `json:"genre,omitempty" xml:"Genre,omitempty"`
	Tags                string `json:"tags,omitempty" xml:"Tags,omitempty"`
	Web                 string `json:"web,omitempty" xml:"Web,omitempty"`
	PageCount           string `json:"page_count,omitempty" xml:"PageCount,omitempty"`
	LanguageISO         string `json:"language_iso,omitempty" xml:"LanguageISO,omitempty"`
	Format              string `json:"format,omitempty" xml:"Format,omitempty"`
	BlackAndWhite       string `json:"black_and_white,omitempty" xml:"BlackAndWhite,omitempty"`
	Manga               string `json:"manga,omitempty" xml:"Manga,omitempty"`
	Characters          string `json:"characters,omitempty" xml:"Characters,omitempty"`
	Teams               string `json:"teams,omitempty" xml:"Teams,omitempty"`
	Locations           string `json:"locations,omitempty" xml:"Locations,omitempty"`
	MainCharacterOrTeam string `json:"main_character_or_team,omitempty" xml:"MainCharacterOrTeam,omitempty"`
	ScanInformation     string `json:"scan_information,omitempty" xml:"ScanInformation,omitempty"`
	StoryArc            string `json:"story_arc,omitempty" xml:"StoryArc,omitempty"`
	StoryArcNumber      string `json:"story_arc_number,omitempty" xml:"StoryArcNumber,omitempty"`
	SeriesGroup         string `json:"series_group,omitempty" xml:"SeriesGroup,omitempty"`
	AgeRating           string `json:"age_rating,omitempty" xml:"AgeRating,omitempty"`
	CommunityRating     string `json:"community_rating,omitempty" xml:"CommunityRating,omitempty"`
	Review              string `json:"review,omitempty" xml:"Review,omitempty"`
	GTIN                string `json:"gtin,omitempty" xml:"GTIN,omitempty"`
}

// Get returns the value stored for f.
func (m *Metadata) Get(f Field) string {
	if p := m.slot(f); p != nil {
		return *p
	}
	return ""
}

// Set stores value for f. Unknown fields are ignored and reported false.
func (m *Metadata) Set(f Field, value string) bool {
	p := m.slot(f)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Values returns every non-empty field.
func (m *Metadata) Values() map[Field]string {
	out := make(map[Field]string)
	for _, f := range allFields {
		if v := m.Get(f); !IsEmpty(v) {
			out[f] = v
		}
	}
	return out
}

// IsZero reports whether every field is empty.
func (m *Metadata) IsZero() bool {
	for _, f := range allFields {
		if !IsEmpty(m.Get(f)) {
			return false
		}
	}
	return true
}

func (m *Metadata) slot(f Field) *string {
	switch f {
	case FieldTitle:
		return &m.Title
	case FieldSeries:
		return &m.Series
	case FieldNumber:
		return &m.Number
	case FieldCount:
		return &m.Count
	case FieldVolume:
		return &m.Volume
	case FieldAlternateSeries:
		return &m.AlternateSeries
	case FieldAlternateNumber:
		return &m.AlternateNumber
	case FieldAlternateCount:
		return &m.AlternateCount
	case FieldSummary:
		return &m.Summary
	case FieldNotes:
		return &m.Notes
	case FieldYear:
		return &m.Year
	case FieldMonth:
		return &m.Month
	case FieldDay:
		return &m.Day
	case FieldWriter:
		return &m.Writer
	case FieldPenciller:
		return &m.Penciller
	case FieldInker:
		return &m.Inker
	case FieldColorist:
		return &m.Colorist
	case FieldLetterer:
		return &m.Letterer
	case FieldCoverArtist:
		return &m.CoverArtist
	case FieldEditor:
		return &m.Editor
	case FieldTranslator:
		return &m.Translator
	case FieldPublisher:
		return &m.Publisher
	case FieldImprint:
		return &m.Imprint
	case FieldGenre:
		return &m.Genre
	case FieldTags:
		return &m.Tags
	case FieldWeb:
		return &m.Web
	case FieldPageCount:
		return &m.PageCount
	case FieldLanguageISO:
		return &m.LanguageISO
	case FieldFormat:
		return &m.Format
	case FieldBlackAndWhite:
		return &m.BlackAndWhite
	case FieldManga:
		return &m.Manga
	case FieldCharacters:
		return &m.Characters
	case FieldTeams:
		return &m.Teams
	case FieldLocations:
		return &m.Locations
	case FieldMainCharacterOrTeam:
		return &m.MainCharacterOrTeam
	case FieldScanInformation:
		return &m.ScanInformation
	case FieldStoryArc:
		return &m.StoryArc
	case FieldStoryArcNumber:
		return &m.StoryArcNumber
	case FieldSeriesGroup:
		return &m.SeriesGroup
	case FieldAgeRating:
		return &m.AgeRating
	case FieldCommunityRating:
		return &m.CommunityRating
	case FieldReview:
		return &m.Review
	case FieldGTIN:
		return &m.GTIN
	default:
		return nil
	}
}

// Normalize trims a value for comparison; whitespace-only values are empty.
func Normalize(value string) string {
	return strings.TrimSpace(value)
}

// IsEmpty reports whether value counts as absent.
func IsEmpty(value string) bool {
	return Normalize(value) == ""
}

// Equal compares two field values after normalization, so "" and "  " match.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// JoinList renders list values in ComicInfo's comma-separated form.
func JoinList(values []string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, ", ")
}

// SplitList parses a comma-separated list value.
func SplitList(value string) []string {
	if IsEmpty(value) {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
