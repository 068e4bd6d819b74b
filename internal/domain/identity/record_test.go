package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRecord(t *testing.T) {
	record, err := NewRecord("  Jane.Doe@Example.COM ")
	assert.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", record.Email)
	assert.Equal(t, StatusPending, record.Status)
	assert.NotEqual(t, "", record.ID.String())
}

func TestNewRecord_InvalidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"no at sign", "not-an-email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecord(tt.email)
			assert.Error(t, err)
		})
	}
}

func TestRecord_MergeProfile_CoalesceOnWrite(t *testing.T) {
	record, _ := NewRecord("j@x.com")
	record.MergeProfile(Profile{FirstName: "Jane", LastName: "Doe", Phone: "+15550001"})

	// Empty incoming values must not erase existing ones
	record.MergeProfile(Profile{FirstName: "", LastName: "", Phone: ""})
	assert.Equal(t, "Jane", record.FirstName)
	assert.Equal(t, "Doe", record.LastName)
	assert.Equal(t, "+15550001", record.Phone)

	// Non-empty incoming values overwrite
	record.MergeProfile(Profile{FirstName: "Janet"})
	assert.Equal(t, "Janet", record.FirstName)
	assert.Equal(t, "Doe", record.LastName)
}

func TestRecord_MergeProfile_ProgramOverwrites(t *testing.T) {
	record, _ := NewRecord("j@x.com")
	record.MergeProfile(Profile{Program: "power-building"})
	assert.Equal(t, "power-building", record.SelectedProgram)

	// A later authoritative event carrying an explicit program wins
	record.MergeProfile(Profile{Program: "running-program"})
	assert.Equal(t, "running-program", record.SelectedProgram)

	// Absence of program information leaves the stored choice alone
	record.MergeProfile(Profile{FirstName: "Jane"})
	assert.Equal(t, "running-program", record.SelectedProgram)
}

func TestRecord_MergeProfile_AnswersAccumulate(t *testing.T) {
	record, _ := NewRecord("j@x.com")
	record.MergeProfile(Profile{Answers: map[string]string{"goal": "strength"}})
	record.MergeProfile(Profile{Answers: map[string]string{"experience": "beginner"}})

	assert.Equal(t, "strength", record.Answers["goal"])
	assert.Equal(t, "beginner", record.Answers["experience"])
}

func TestRecord_AdoptProgram_OnlyWhenUnset(t *testing.T) {
	record, _ := NewRecord("j@x.com")
	record.AdoptProgram("default-program")
	assert.Equal(t, "default-program", record.SelectedProgram)

	record.AdoptProgram("other-program")
	assert.Equal(t, "default-program", record.SelectedProgram)
}

func TestRecord_AttachExternalIDs(t *testing.T) {
	record, _ := NewRecord("j@x.com")

	record.AttachExternalIDs(ExternalIDs{CoachingClientID: "12345"}, StatusTrialing)
	assert.Equal(t, "12345", record.CoachingClientID)
	assert.Equal(t, "", record.CRMContactID)
	assert.Equal(t, StatusTrialing, record.Status)

	// A second pass contributing the CRM ID must not disturb the coaching ID
	record.AttachExternalIDs(ExternalIDs{CRMContactID: "ghl_1"}, StatusTrialing)
	assert.Equal(t, "12345", record.CoachingClientID)
	assert.Equal(t, "ghl_1", record.CRMContactID)

	// Once set, an ID is never replaced
	record.AttachExternalIDs(ExternalIDs{CoachingClientID: "99999"}, StatusActive)
	assert.Equal(t, "12345", record.CoachingClientID)
	assert.Equal(t, StatusActive, record.Status)
}

func TestRecord_MarkLost_KeepsIDs(t *testing.T) {
	record, _ := NewRecord("j@x.com")
	record.AttachExternalIDs(ExternalIDs{CoachingClientID: "12345", CRMContactID: "ghl_1"}, StatusTrialing)

	record.MarkLost()

	assert.Equal(t, StatusLost, record.Status)
	assert.Equal(t, "12345", record.CoachingClientID)
	assert.Equal(t, "ghl_1", record.CRMContactID)
}

func TestRecord_FullName(t *testing.T) {
	record, _ := NewRecord("j@x.com")
	assert.Equal(t, "", record.FullName())

	record.MergeProfile(Profile{FirstName: "Jane"})
	assert.Equal(t, "Jane", record.FullName())

	record.MergeProfile(Profile{LastName: "Doe"})
	assert.Equal(t, "Jane Doe", record.FullName())
}
