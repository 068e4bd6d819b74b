package models

import (
	"time"

	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/google/uuid"
)

// IdentityRecordModel is the GORM model for identity records. Email is the
// logical key; the uuid primary key exists for stable references.
type IdentityRecordModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primary_key"`
	Email            string            `gorm:"uniqueIndex;not null"`
	FirstName        string            ``
	LastName         string            ``
	Phone            string            ``
	SelectedProgram  string            ``
	CoachingClientID string            `gorm:"column:coaching_client_id"`
	CRMContactID     string            `gorm:"column:crm_contact_id"`
	Status           string            `gorm:"not null;default:'pending'"`
	Answers          map[string]string `gorm:"serializer:json"`
	CreatedAt        time.Time         `gorm:"not null"`
	UpdatedAt        time.Time         `gorm:"not null"`
}

// TableName returns the table name for the model
func (IdentityRecordModel) TableName() string {
	return "identity_records"
}

// ToDomain converts the model to a domain record
func (m *IdentityRecordModel) ToDomain() *identity.Record {
	return &identity.Record{
		ID:               m.ID,
		Email:            m.Email,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		Phone:            m.Phone,
		SelectedProgram:  m.SelectedProgram,
		CoachingClientID: m.CoachingClientID,
		CRMContactID:     m.CRMContactID,
		Status:           identity.LifecycleStatus(m.Status),
		Answers:          m.Answers,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain record
func (m *IdentityRecordModel) FromDomain(r *identity.Record) {
	m.ID = r.ID
	m.Email = r.Email
	m.FirstName = r.FirstName
	m.LastName = r.LastName
	m.Phone = r.Phone
	m.SelectedProgram = r.SelectedProgram
	m.CoachingClientID = r.CoachingClientID
	m.CRMContactID = r.CRMContactID
	m.Status = string(r.Status)
	m.Answers = r.Answers
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}
