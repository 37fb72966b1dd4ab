package comicinfo

import "strings"

// Field names one ComicInfo.xml element.
type Field string

const (
	FieldTitle               Field = "Title"
	FieldSeries              Field = "Series"
	FieldNumber              Field = "Number"
	FieldCount               Field = "Count"
	FieldVolume              Field = "Volume"
	FieldAlternateSeries     Field = "AlternateSeries"
	FieldAlternateNumber     Field = "AlternateNumber"
	FieldAlternateCount      Field = "AlternateCount"
	FieldSummary             Field = "Summary"
	FieldNotes               Field = "Notes"
	FieldYear                Field = "Year"
	FieldMonth               Field = "Month"
	FieldDay                 Field = "Day"
	FieldWriter              Field = "Writer"
	FieldPenciller           Field = "Penciller"
	FieldInker               Field = "Inker"
	FieldColorist            Field = "Colorist"
	FieldLetterer            Field = "Letterer"
	FieldCoverArtist         Field = "CoverArtist"
	FieldEditor              Field = "Editor"
	FieldTranslator          Field = "Translator"
	FieldPublisher           Field = "Publisher"
	FieldImprint             Field = "Imprint"
	FieldGenre               Field = "Genre"
	FieldTags                Field = "Tags"
	FieldWeb                 Field = "Web"
	FieldPageCount           Field = "PageCount"
	FieldLanguageISO         Field = "LanguageISO"
	FieldFormat              Field = "Format"
	FieldBlackAndWhite       Field = "BlackAndWhite"
	FieldManga               Field = "Manga"
	FieldCharacters          Field = "Characters"
	FieldTeams               Field = "Teams"
	FieldLocations           Field = "Locations"
	FieldMainCharacterOrTeam Field = "MainCharacterOrTeam"
	FieldScanInformation     Field = "ScanInformation"
	FieldStoryArc            Field = "StoryArc"
	FieldStoryArcNumber      Field = "StoryArcNumber"
	FieldSeriesGroup         Field = "SeriesGroup"
	FieldAgeRating           Field = "AgeRating"
	FieldCommunityRating     Field = "CommunityRating"
	FieldReview              Field = "Review"
	FieldGTIN                Field = "GTIN"
)

// Category groups fields the way review screens present them.
type Category string

const (
	CategoryCore       Category = "core"
	CategoryContent    Category = "content"
	CategoryDate       Category = "date"
	CategoryCredits    Category = "credits"
	CategoryTags       Category = "tags"
	CategoryPublishing Category = "publishing"
	CategoryRating     Category = "rating"
	CategoryScan       Category = "scan"
)

var allFields = []Field{
	FieldTitle, FieldSeries, FieldNumber, FieldCount, FieldVolume,
	FieldAlternateSeries, FieldAlternateNumber, FieldAlternateCount,
	FieldSummary, FieldNotes,
	FieldYear, FieldMonth, FieldDay,
	FieldWriter, FieldPenciller, FieldInker, FieldColorist, FieldLetterer,
	FieldCoverArtist, FieldEditor, FieldTranslator,
	FieldPublisher, FieldImprint, FieldGenre, FieldTags, FieldWeb,
	FieldPageCount, FieldLanguageISO, FieldFormat, FieldBlackAndWhite, FieldManga,
	FieldCharacters, FieldTeams, FieldLocations, FieldMainCharacterOrTeam,
	FieldScanInformation, FieldStoryArc, FieldStoryArcNumber, FieldSeriesGroup,
	FieldAgeRating, FieldCommunityRating, FieldReview, FieldGTIN,
}

var fieldLookup = func() map[string]Field {
	out := make(map[string]Field, len(allFields))
	for _, f := range allFields {
		out[strings.ToLower(string(f))] = f
	}
	return out
}()

// AllFields returns every field in schema order.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// ParseField resolves a field name case-insensitively.
func ParseField(name string) (Field, bool) {
	f, ok := fieldLookup[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Category reports which display group a field belongs to.
func (f Field) Category() Category {
	switch f {
	case FieldTitle, FieldSeries, FieldNumber, FieldCount, FieldVolume,
		FieldAlternateSeries, FieldAlternateNumber, FieldAlternateCount:
		return CategoryCore
	case FieldSummary, FieldNotes, FieldReview:
		return CategoryContent
	case FieldYear, FieldMonth, FieldDay:
		return CategoryDate
	case FieldWriter, FieldPenciller, FieldInker, FieldColorist, FieldLetterer,
		FieldCoverArtist, FieldEditor, FieldTranslator:
		return CategoryCredits
	case FieldGenre, FieldTags, FieldCharacters, FieldTeams, FieldLocations,
		FieldMainCharacterOrTeam, FieldStoryArc, FieldStoryArcNumber, FieldSeriesGroup:
		return CategoryTags
	case FieldPublisher, FieldImprint, FieldWeb, FieldPageCount, FieldLanguageISO,
		FieldFormat, FieldBlackAndWhite, FieldManga, FieldGTIN:
		return CategoryPublishing
	case FieldAgeRating, FieldCommunityRating:
		return CategoryRating
	case FieldScanInformation:
		return CategoryScan
	default:
		return CategoryCore
	}
}

// IsList reports whether the field holds a comma-separated list.
func (f Field) IsList() bool {
	switch f {
	case FieldWriter, FieldPenciller, FieldInker, FieldColorist, FieldLetterer,
		FieldCoverArtist, FieldEditor, FieldTranslator,
		FieldGenre, FieldTags, FieldCharacters, FieldTeams, FieldLocations, FieldStoryArc:
		return true
	default:
		return false
	}
}

// Valid reports whether f is part of the schema.
func (f Field) Valid() bool {
	_, ok := fieldLookup[strings.ToLower(string(f))]
	return ok
}
