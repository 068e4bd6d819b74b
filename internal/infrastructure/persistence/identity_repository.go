package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/barn/onboarding/internal/domain/identity"
	"github.com/barn/onboarding/internal/domain/shared"
	"github.com/barn/onboarding/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIdentityRepository implements identity.Repository using GORM.
// Writes for one email are serialized through a transaction that locks the
// row, so concurrent events for the same subject converge instead of
// clobbering each other.
type GormIdentityRepository struct {
	db *gorm.DB
}

var _ identity.Repository = (*GormIdentityRepository)(nil)

// NewGormIdentityRepository creates a new GormIdentityRepository
func NewGormIdentityRepository(db *gorm.DB) *GormIdentityRepository {
	return &GormIdentityRepository{db: db}
}

// FindByEmail finds a record by its normalized email
func (r *GormIdentityRepository) FindByEmail(ctx context.Context, email string) (*identity.Record, error) {
	var model models.IdentityRecordModel
	if err := r.db.WithContext(ctx).First(&model, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpsertIntent creates the record for a previously unseen email or merges
// the profile into the existing one, never overwriting populated fields with
// empty incoming values.
func (r *GormIdentityRepository) UpsertIntent(ctx context.Context, email string, profile identity.Profile) (*identity.Record, error) {
	var result *identity.Record
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.IdentityRecordModel
		err := r.lockForUpdate(tx).First(&model, "email = ?", email).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			record, err := identity.NewRecord(email)
			if err != nil {
				return err
			}
			record.MergeProfile(profile)
			model.FromDomain(record)

			// A concurrent transaction may create the same email first;
			// fall through to the merge path when the insert is a no-op.
			created := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoNothing: true,
			}).Create(&model)
			if created.Error != nil {
				return created.Error
			}
			if created.RowsAffected > 0 {
				result = record
				return nil
			}
			if err := r.lockForUpdate(tx).First(&model, "email = ?", email).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		record := model.ToDomain()
		record.MergeProfile(profile)
		record.UpdatedAt = time.Now()
		model.FromDomain(record)
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecordExternalIDs attaches downstream system IDs and the new status to the
// record. IDs already present are never replaced.
func (r *GormIdentityRepository) RecordExternalIDs(ctx context.Context, email string, ids identity.ExternalIDs, status identity.LifecycleStatus) error {
	return r.withLockedRecord(ctx, email, func(record *identity.Record) {
		record.AttachExternalIDs(ids, status)
	})
}

// MarkLost transitions the record to lost, keeping external IDs
func (r *GormIdentityRepository) MarkLost(ctx context.Context, email string) error {
	return r.withLockedRecord(ctx, email, func(record *identity.Record) {
		record.MarkLost()
	})
}

// Save persists the full state of a record
func (r *GormIdentityRepository) Save(ctx context.Context, record *identity.Record) error {
	record.UpdatedAt = time.Now()
	var model models.IdentityRecordModel
	model.FromDomain(record)
	return r.db.WithContext(ctx).Save(&model).Error
}

// withLockedRecord loads the record under a row lock, applies the mutation,
// and writes it back in the same transaction.
func (r *GormIdentityRepository) withLockedRecord(ctx context.Context, email string, mutate func(*identity.Record)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.IdentityRecordModel
		if err := r.lockForUpdate(tx).First(&model, "email = ?", email).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		record := model.ToDomain()
		mutate(record)
		record.UpdatedAt = time.Now()
		model.FromDomain(record)
		return tx.Save(&model).Error
	})
}

// lockForUpdate adds a FOR UPDATE row lock on dialects that support it.
// SQLite serializes writers on its own.
func (r *GormIdentityRepository) lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
