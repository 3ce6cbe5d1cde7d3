package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facturly/facturly/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubscriptionChange is one absolute-state transition applied to a billing
// account as a single atomic write. Every field value comes from the event
// payload (or a fetch triggered by it), never from "current value + delta",
// which bounds out-of-order delivery to briefly-stale state.
type SubscriptionChange struct {
	// Plan is left unchanged when nil.
	Plan *string
	// Status is always written.
	Status string
	// EntitlementUntil is written (possibly to NULL) only when
	// SetEntitlement is true; the payment-failed transition must leave it
	// untouched.
	EntitlementUntil *time.Time
	SetEntitlement   bool
}

// Repository provides the datastore operations used by the billing core.
// Mutations are conditional or single-statement so concurrent entry points
// never interleave partial state.
type Repository interface {
	GetBillingAccount(ctx context.Context, accountID string) (*models.BillingAccount, error)
	GetBillingAccountByCustomerID(ctx context.Context, customerID string) (*models.BillingAccount, error)

	// SetStripeCustomerIDIfUnset links a Stripe customer to an account only
	// if no customer is linked yet. Returns false when the account already
	// had one (e.g. a concurrent resolver won the race).
	SetStripeCustomerIDIfUnset(ctx context.Context, accountID, customerID string) (bool, error)

	// ApplySubscriptionChange writes one transition as a single UPDATE.
	ApplySubscriptionChange(ctx context.Context, accountID string, change SubscriptionChange) error

	// CreateWebhookEventIfNotExists inserts a ledger row unless the event id
	// is already recorded. Returns whether this call created the row, plus
	// the stored row either way.
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)

	// MarkWebhookProcessed records the terminal outcome for a ledger row.
	MarkWebhookProcessed(ctx context.Context, id uint, outcome string, processingErr error) error
}

// ProfileDirectory reads contact data owned by the registration subsystem.
type ProfileDirectory interface {
	EmailFor(ctx context.Context, accountID string) (string, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetBillingAccount(ctx context.Context, accountID string) (*models.BillingAccount, error) {
	var account models.BillingAccount
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) GetBillingAccountByCustomerID(ctx context.Context, customerID string) (*models.BillingAccount, error) {
	var account models.BillingAccount
	err := r.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrAccountNotFound, customerID)
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) SetStripeCustomerIDIfUnset(ctx context.Context, accountID, customerID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.BillingAccount{}).
		Where("account_id = ? AND stripe_customer_id IS NULL", accountID).
		Update("stripe_customer_id", customerID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) ApplySubscriptionChange(ctx context.Context, accountID string, change SubscriptionChange) error {
	updates := map[string]interface{}{
		"subscription_status": change.Status,
	}
	if change.Plan != nil {
		updates["subscription_plan"] = *change.Plan
	}
	if change.SetEntitlement {
		updates["entitlement_until"] = change.EntitlementUntil
	}
	return r.db.WithContext(ctx).
		Model(&models.BillingAccount{}).
		Where("account_id = ?", accountID).
		Updates(updates).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stripe_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).
		Where("stripe_event_id = ?", event.StripeEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, outcome string, processingErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"outcome":      outcome,
		"processed_at": &now,
	}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	}
	return r.db.WithContext(ctx).
		Model(&models.BillingWebhookEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

type gormProfileDirectory struct {
	db *gorm.DB
}

// NewProfileDirectory reads user emails from the registration-owned users
// table.
func NewProfileDirectory(db *gorm.DB) ProfileDirectory {
	return &gormProfileDirectory{db: db}
}

func (d *gormProfileDirectory) EmailFor(ctx context.Context, accountID string) (string, error) {
	var user models.User
	err := d.db.WithContext(ctx).Select("id", "email").Where("id = ?", accountID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		return "", err
	}
	return user.Email, nil
}
