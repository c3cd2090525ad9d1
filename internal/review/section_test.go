package review

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "orgreview/internal/common/errors"
)

func TestParseSection(t *testing.T) {
	for _, name := range []string{"organization", "advocacy", "competency", "org_heads", "programs", "news"} {
		section, err := ParseSection(name)
		assert.NoError(t, err)
		assert.Equal(t, Section(name), section)
	}

	_, err := ParseSection("gallery")
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeUnsupportedSection))
}

func TestValidatePayload_ShapePerSection(t *testing.T) {
	tests := []struct {
		name    string
		section Section
		payload string
		valid   bool
	}{
		{"organization object", SectionOrganization, `{"name":"Faith Outreach"}`, true},
		{"organization string rejected", SectionOrganization, `"Faith Outreach"`, false},
		{"organization empty object rejected", SectionOrganization, `{}`, false},
		{"advocacy string", SectionAdvocacy, `"We fight for clean water."`, true},
		{"advocacy object rejected", SectionAdvocacy, `{"text":"nope"}`, false},
		{"advocacy empty string rejected", SectionAdvocacy, `""`, false},
		{"competency string", SectionCompetency, `"Community health training"`, true},
		{"org_heads array", SectionOrgHeads, `[{"name":"Ana Cruz","role":"President"}]`, true},
		{"org_heads object rejected", SectionOrgHeads, `{"name":"Ana Cruz"}`, false},
		{"org_heads missing role rejected", SectionOrgHeads, `[{"name":"Ana Cruz"}]`, false},
		{"org_heads empty array rejected", SectionOrgHeads, `[]`, false},
		{"programs object", SectionPrograms, `{"title":"Blood Drive"}`, true},
		{"programs missing title rejected", SectionPrograms, `{"description":"annual"}`, false},
		{"programs array rejected", SectionPrograms, `[{"title":"Blood Drive"}]`, false},
		{"news object", SectionNews, `{"title":"New chapter opened"}`, true},
		{"news missing title rejected", SectionNews, `{"description":"details"}`, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePayload(tc.section, json.RawMessage(tc.payload))
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPayload))
			}
		})
	}
}

func TestValidatePayload_EmptyAndUnknown(t *testing.T) {
	err := ValidatePayload(SectionPrograms, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeInvalidPayload))

	err = ValidatePayload(Section("gallery"), json.RawMessage(`{}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrCodeUnsupportedSection))
}

func TestParseProgramPayload(t *testing.T) {
	raw := json.RawMessage(`{
		"title": "Blood Drive",
		"dates": ["2026-10-01", "2026-10-02"],
		"images": ["a.jpg", "b.jpg"],
		"collaborators": [7, 12]
	}`)

	payload, err := ParseProgramPayload(raw)
	assert.NoError(t, err)
	assert.Equal(t, "Blood Drive", payload.Title)
	assert.Len(t, payload.Dates, 2)
	assert.Len(t, payload.Images, 2)
	assert.Equal(t, []int64{7, 12}, payload.Collaborators)
}

func TestDisplayField(t *testing.T) {
	assert.Equal(t, "Blood Drive",
		DisplayField(SectionPrograms, json.RawMessage(`{"title":"Blood Drive"}`)))
	assert.Equal(t, "Chapter news",
		DisplayField(SectionNews, json.RawMessage(`{"title":"Chapter news"}`)))
	assert.Equal(t, "Faith Outreach",
		DisplayField(SectionOrganization, json.RawMessage(`{"name":"Faith Outreach"}`)))
	assert.Equal(t, "",
		DisplayField(SectionAdvocacy, json.RawMessage(`"free text"`)))
}
