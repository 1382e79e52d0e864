package repositories

import (
	"time"

	"payrail/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewAuditRecord builds an audit row for a mutation. The caller hands it
// to the repository method performing the change so both commit together.
func NewAuditRecord(actor, entityType, entityID, action string, before, after models.JSON) *models.AuditRecord {
	return &models.AuditRecord{
		ID:         uuid.NewString(),
		Actor:      actor,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Before:     before,
		After:      after,
		CreatedAt:  time.Now().UTC(),
	}
}

// appendAudit writes the audit row on the same transaction as the
// mutation it describes, so neither lands without the other.
func appendAudit(tx *gorm.DB, rec *models.AuditRecord) error {
	if rec == nil {
		return nil
	}
	return tx.Create(rec).Error
}
