package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BhumikP/ecomm-firebase-sub000/pkg/db/models"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/enums"
	pkgerrors "github.com/BhumikP/ecomm-firebase-sub000/pkg/errors"
	"github.com/BhumikP/ecomm-firebase-sub000/pkg/pagination"
)

const maxDLQErrorLen = 1024

// DLQRepository stores settlement events the relay gave up on. Rows are
// written by the publisher and read back by operators replaying refunds or
// order notifications by hand.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// DLQFilter narrows List. Zero values match everything.
type DLQFilter struct {
	Reason    enums.OutboxDLQErrorReason
	EventType enums.OutboxEventType
	Limit     int
}

// InsertTx writes entry in the relay's transaction, next to the update that
// retires the outbox row.
func (r *DLQRepository) InsertTx(ctx context.Context, tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "dead letter insert needs a transaction")
	}
	if !entry.ErrorReason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown dead letter reason").WithDetails(map[string]any{"reason": entry.ErrorReason})
	}
	if entry.ErrorMessage != nil && len(*entry.ErrorMessage) > maxDLQErrorLen {
		msg := (*entry.ErrorMessage)[:maxDLQErrorLen]
		entry.ErrorMessage = &msg
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert dead letter")
	}
	return nil
}

// FindByEventID returns nil without error when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter")
	}
	return &entry, nil
}

// List returns the newest entries first.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	query := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.Reason != "" {
		if !filter.Reason.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dead letter reason").WithDetails(map[string]any{"reason": filter.Reason})
		}
		query = query.Where("error_reason = ?", filter.Reason)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}

	var rows []models.OutboxDLQ
	if err := query.Order("failed_at DESC").Limit(pagination.NormalizeLimit(filter.Limit)).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters")
	}
	return rows, nil
}
