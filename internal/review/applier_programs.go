package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// applyPrograms inserts the program row plus one calendar row per proposed
// date and one gallery row per additional image, preserving order. The new
// program id is returned for the collaboration step.
func (a *SectionApplier) applyPrograms(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
	payload, err := ParseProgramPayload(raw)
	if err != nil {
		return nil, err
	}

	var startDate, endDate interface{}
	if payload.StartDate != "" {
		d, err := parseDate(payload.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start_date %q: %w", payload.StartDate, err)
		}
		startDate = d
	}
	if payload.EndDate != "" {
		d, err := parseDate(payload.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end_date %q: %w", payload.EndDate, err)
		}
		endDate = d
	}

	var programID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO programs (
			organization_id, title, description, category, status, image,
			start_date, end_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		orgID, payload.Title, payload.Description, payload.Category,
		payload.Status, payload.Image, startDate, endDate, time.Now().UTC(),
	).Scan(&programID)
	if err != nil {
		return nil, fmt.Errorf("insert program: %w", err)
	}

	for _, dateStr := range payload.Dates {
		d, err := parseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid program date %q: %w", dateStr, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO program_dates (program_id, event_date)
			VALUES ($1, $2)`, programID, d); err != nil {
			return nil, fmt.Errorf("insert program date: %w", err)
		}
	}

	for i, image := range payload.Images {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO program_images (program_id, image, position)
			VALUES ($1, $2, $3)`, programID, image, i+1); err != nil {
			return nil, fmt.Errorf("insert program image: %w", err)
		}
	}

	return &ApplyResult{ProgramID: programID}, nil
}

// applyNews inserts the news row; a missing date defaults to today.
func (a *SectionApplier) applyNews(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
	payload, err := ParseNewsPayload(raw)
	if err != nil {
		return nil, err
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if payload.Date != "" {
		d, err := parseDate(payload.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid news date %q: %w", payload.Date, err)
		}
		date = d
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO news (organization_id, title, description, date)
		VALUES ($1, $2, $3, $4)`,
		orgID, payload.Title, payload.Description, date); err != nil {
		return nil, fmt.Errorf("insert news: %w", err)
	}
	return &ApplyResult{}, nil
}
