// Package review implements the submission/approval workflow engine:
// organization resolution, submission persistence, per-section appliers,
// the approval state machine, collaboration invitations, notification
// dispatch and bulk operations.
package review

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	apperrors "orgreview/internal/common/errors"
)

// Section is the category of organizational data a submission modifies.
type Section string

const (
	SectionOrganization Section = "organization"
	SectionAdvocacy     Section = "advocacy"
	SectionCompetency   Section = "competency"
	SectionOrgHeads     Section = "org_heads"
	SectionPrograms     Section = "programs"
	SectionNews         Section = "news"
)

// ParseSection validates a wire-level section name.
func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionOrganization, SectionAdvocacy, SectionCompetency,
		SectionOrgHeads, SectionPrograms, SectionNews:
		return Section(s), nil
	}
	return "", apperrors.NewUnsupportedSectionError(s)
}

// Per-section proposed_data contracts. Everything beyond the shape check is
// tolerated so tenants can carry extra display fields through review.
var sectionSchemas = map[Section]string{
	SectionOrganization: `{
		"type": "object",
		"minProperties": 1,
		"properties": {
			"name":          {"type": "string"},
			"acronym":       {"type": "string"},
			"description":   {"type": "string"},
			"logo":          {"type": "string"},
			"contact_email": {"type": "string"},
			"contact_phone": {"type": "string"}
		}
	}`,
	SectionAdvocacy:   `{"type": "string", "minLength": 1}`,
	SectionCompetency: `{"type": "string", "minLength": 1}`,
	SectionOrgHeads: `{
		"type": "array",
		"minItems": 1,
		"items": {
			"type": "object",
			"required": ["name", "role"],
			"properties": {
				"name":  {"type": "string", "minLength": 1},
				"role":  {"type": "string", "minLength": 1},
				"photo": {"type": "string"},
				"rank":  {"type": "integer"}
			}
		}
	}`,
	SectionPrograms: `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title":         {"type": "string", "minLength": 1},
			"description":   {"type": "string"},
			"category":      {"type": "string"},
			"status":        {"type": "string"},
			"image":         {"type": "string"},
			"start_date":    {"type": "string"},
			"end_date":      {"type": "string"},
			"dates":         {"type": "array", "items": {"type": "string"}},
			"images":        {"type": "array", "items": {"type": "string"}},
			"collaborators": {"type": "array", "items": {"type": "integer"}}
		}
	}`,
	SectionNews: `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title":       {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"date":        {"type": "string"}
		}
	}`,
}

var compiledSchemas = map[Section]*gojsonschema.Schema{}

func init() {
	for section, raw := range sectionSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			panic(fmt.Sprintf("invalid %s schema: %v", section, err))
		}
		compiledSchemas[section] = schema
	}
}

// ValidatePayload checks raw proposed_data against the section's contract.
func ValidatePayload(section Section, raw json.RawMessage) error {
	schema, ok := compiledSchemas[section]
	if !ok {
		return apperrors.NewUnsupportedSectionError(string(section))
	}
	if len(raw) == 0 {
		return apperrors.NewInvalidPayloadError(string(section), "proposed data is empty")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return apperrors.NewInvalidPayloadError(string(section), err.Error())
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return apperrors.NewInvalidPayloadError(string(section), strings.Join(details, "; "))
	}
	return nil
}

// OrganizationPayload updates the organization's display fields.
type OrganizationPayload struct {
	Name         string `json:"name,omitempty"`
	Acronym      string `json:"acronym,omitempty"`
	Description  string `json:"description,omitempty"`
	Logo         string `json:"logo,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// HeadEntry is one row of the proposed leadership roster.
type HeadEntry struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Photo string `json:"photo,omitempty"`
	Rank  int    `json:"rank,omitempty"`
}

// ProgramPayload inserts a program plus optional calendar and gallery rows.
type ProgramPayload struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Category      string   `json:"category,omitempty"`
	Status        string   `json:"status,omitempty"`
	Image         string   `json:"image,omitempty"`
	StartDate     string   `json:"start_date,omitempty"`
	EndDate       string   `json:"end_date,omitempty"`
	Dates         []string `json:"dates,omitempty"`
	Images        []string `json:"images,omitempty"`
	Collaborators []int64  `json:"collaborators,omitempty"`
}

// NewsPayload inserts a news row; Date defaults to the current date.
type NewsPayload struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

const dateLayout = "2006-01-02"

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func ParseOrganizationPayload(raw json.RawMessage) (*OrganizationPayload, error) {
	var p OrganizationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.NewInvalidPayloadError(string(SectionOrganization), err.Error())
	}
	return &p, nil
}

func ParseTextPayload(section Section, raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", apperrors.NewInvalidPayloadError(string(section), err.Error())
	}
	return text, nil
}

func ParseHeadsPayload(raw json.RawMessage) ([]HeadEntry, error) {
	var heads []HeadEntry
	if err := json.Unmarshal(raw, &heads); err != nil {
		return nil, apperrors.NewInvalidPayloadError(string(SectionOrgHeads), err.Error())
	}
	return heads, nil
}

func ParseProgramPayload(raw json.RawMessage) (*ProgramPayload, error) {
	var p ProgramPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.NewInvalidPayloadError(string(SectionPrograms), err.Error())
	}
	return &p, nil
}

func ParseNewsPayload(raw json.RawMessage) (*NewsPayload, error) {
	var p NewsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.NewInvalidPayloadError(string(SectionNews), err.Error())
	}
	return &p, nil
}

// DisplayField extracts the human-readable subject of a payload for
// notification messages: title for programs/news, name for organization.
func DisplayField(section Section, raw json.RawMessage) string {
	switch section {
	case SectionPrograms:
		if p, err := ParseProgramPayload(raw); err == nil {
			return p.Title
		}
	case SectionNews:
		if p, err := ParseNewsPayload(raw); err == nil {
			return p.Title
		}
	case SectionOrganization:
		if p, err := ParseOrganizationPayload(raw); err == nil {
			return p.Name
		}
	}
	return ""
}
