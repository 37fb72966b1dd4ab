package jobstore

import (
	"database/sql"
	"fmt"
	"time"
)

func scanSummary(scanner interface{ Scan(dest ...any) error }) (Summary, error) {
	var (
		summary     Summary
		step        string
		createdRaw  string
		updatedRaw  string
		archivedRaw sql.NullString
	)
	if err := scanner.Scan(
		&summary.ID,
		&step,
		&summary.FileCount,
		&summary.GroupCount,
		&createdRaw,
		&updatedRaw,
		&archivedRaw,
	); err != nil {
		return Summary{}, fmt.Errorf("scan job: %w", err)
	}
	summary.Step = Step(step)
	summary.CreatedAt = parseTime(createdRaw)
	summary.UpdatedAt = parseTime(updatedRaw)
	if archivedRaw.Valid && archivedRaw.String != "" {
		archived := parseTime(archivedRaw.String)
		summary.ArchivedAt = &archived
	}
	return summary, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	return time.Time{}
}

func nullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
