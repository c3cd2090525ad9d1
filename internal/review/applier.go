package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "orgreview/internal/common/errors"
	"orgreview/internal/common/logger"
)

// ApplyResult reports ids created by a section handler. Only the programs
// handler sets ProgramID; the collaboration step needs it.
type ApplyResult struct {
	ProgramID int64
}

type applyFunc func(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error)

// SectionApplier is a registry of per-section mutation strategies. Every
// handler runs inside the caller's transaction; a handler error aborts it
// and the submission stays pending.
type SectionApplier struct {
	handlers map[Section]applyFunc
	logger   logger.Logger
}

func NewSectionApplier(log logger.Logger) *SectionApplier {
	a := &SectionApplier{
		handlers: make(map[Section]applyFunc),
		logger:   log.WithFields(map[string]interface{}{"component": "section-applier"}),
	}
	a.handlers[SectionOrganization] = a.applyOrganization
	a.handlers[SectionAdvocacy] = func(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
		return a.applyUpsertText(ctx, tx, "org_advocacy", SectionAdvocacy, orgID, raw)
	}
	a.handlers[SectionCompetency] = func(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
		return a.applyUpsertText(ctx, tx, "org_competency", SectionCompetency, orgID, raw)
	}
	a.handlers[SectionOrgHeads] = a.applyOrgHeads
	a.handlers[SectionPrograms] = a.applyPrograms
	a.handlers[SectionNews] = a.applyNews
	return a
}

// Apply runs the handler registered for section. Unknown sections are
// unreachable given create/update-time validation but rejected anyway.
func (a *SectionApplier) Apply(ctx context.Context, tx *sql.Tx, section Section, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
	handler, ok := a.handlers[section]
	if !ok {
		return nil, apperrors.NewUnsupportedSectionError(string(section))
	}
	return handler(ctx, tx, orgID, raw)
}

func (a *SectionApplier) applyOrganization(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
	payload, err := ParseOrganizationPayload(raw)
	if err != nil {
		return nil, err
	}

	setClauses := []string{}
	args := []interface{}{}
	addSet := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addSet("name", payload.Name)
	addSet("acronym", payload.Acronym)
	addSet("description", payload.Description)
	addSet("logo", payload.Logo)
	addSet("contact_email", payload.ContactEmail)
	addSet("contact_phone", payload.ContactPhone)

	if len(setClauses) == 0 {
		return nil, fmt.Errorf("organization payload carries no fields to update")
	}

	args = append(args, orgID)
	query := fmt.Sprintf("UPDATE organizations SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), len(args))

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update organization: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("organization %d does not exist", orgID)
	}
	return &ApplyResult{}, nil
}

// applyUpsertText covers the advocacy and competency sections: each
// organization holds at most one free-text row, updated if present and
// inserted otherwise.
func (a *SectionApplier) applyUpsertText(ctx context.Context, tx *sql.Tx, table string, section Section, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
	text, err := ParseTextPayload(section, raw)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET content = $1 WHERE organization_id = $2", table),
		text, orgID)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	if affected == 0 {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (organization_id, content) VALUES ($1, $2)", table),
			orgID, text)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table, err)
		}
	}
	return &ApplyResult{}, nil
}

// applyOrgHeads replaces the whole leadership roster: delete every existing
// head row, then insert the proposed ordered array. Repeated application is
// idempotent by construction.
func (a *SectionApplier) applyOrgHeads(ctx context.Context, tx *sql.Tx, orgID int64, raw json.RawMessage) (*ApplyResult, error) {
	heads, err := ParseHeadsPayload(raw)
	if err != nil {
		return nil, err
	}
	for i, head := range heads {
		if head.Name == "" || head.Role == "" {
			return nil, fmt.Errorf("org head %d is missing name or role", i)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM org_heads WHERE organization_id = $1`, orgID); err != nil {
		return nil, fmt.Errorf("clear org heads: %w", err)
	}

	for i, head := range heads {
		rank := head.Rank
		if rank == 0 {
			rank = i + 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO org_heads (organization_id, name, role, photo, rank)
			VALUES ($1, $2, $3, $4, $5)`,
			orgID, head.Name, head.Role, head.Photo, rank)
		if err != nil {
			return nil, fmt.Errorf("insert org head %q: %w", head.Name, err)
		}
	}
	return &ApplyResult{}, nil
}
