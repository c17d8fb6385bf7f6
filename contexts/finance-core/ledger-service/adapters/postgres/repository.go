package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainerrors "agegate/contexts/finance-core/ledger-service/domain/errors"
	"agegate/contexts/finance-core/ledger-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

func (r *Repository) EnsureAccount(ctx context.Context, accountID string, now time.Time) (ports.Account, error) {
	row := accountModel{
		AccountID: accountID,
		Balance:   0,
		CreatedAt: now.UTC(),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoNothing: true,
		}).
		Create(&row).
		Error; err != nil {
		return ports.Account{}, err
	}
	return r.GetAccount(ctx, accountID)
}

func (r *Repository) GetAccount(ctx context.Context, accountID string) (ports.Account, error) {
	var row accountModel
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Account{}, domainerrors.ErrAccountNotFound
		}
		return ports.Account{}, err
	}
	return row.toPort(), nil
}

func (r *Repository) ApplyDelta(ctx context.Context, delta ports.Delta, now time.Time) (ports.Account, ports.Entry, error) {
	if delta.Amount <= 0 {
		return ports.Account{}, ports.Entry{}, domainerrors.ErrInvalidAmount
	}
	signed := delta.Amount
	switch delta.Kind {
	case ports.EntryKindCredit:
	case ports.EntryKindDebit:
		signed = -signed
	default:
		return ports.Account{}, ports.Entry{}, domainerrors.ErrInvalidRequest
	}

	var account accountModel
	entryRow := entryModel{
		EntryID:   uuid.NewString(),
		AccountID: delta.AccountID,
		Amount:    delta.Amount,
		Kind:      delta.Kind,
		Reason:    delta.Reason,
		CreatedAt: now.UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", delta.AccountID).
			First(&account).
			Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrAccountNotFound
			}
			return err
		}
		account.Balance += signed
		if err := tx.Model(&accountModel{}).
			Where("account_id = ?", delta.AccountID).
			Update("balance", account.Balance).
			Error; err != nil {
			return err
		}
		return tx.Create(&entryRow).Error
	})
	if err != nil {
		return ports.Account{}, ports.Entry{}, err
	}
	return account.toPort(), entryRow.toPort(), nil
}

func (r *Repository) ListEntries(ctx context.Context, accountID string, limit int) ([]ports.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if _, err := r.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	var rows []entryModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]ports.Entry, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

type accountModel struct {
	AccountID string    `gorm:"column:account_id;primaryKey"`
	Balance   int64     `gorm:"column:balance"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (accountModel) TableName() string {
	return "ledger_accounts"
}

func (m accountModel) toPort() ports.Account {
	return ports.Account{
		AccountID: m.AccountID,
		Balance:   m.Balance,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type entryModel struct {
	EntryID   string    `gorm:"column:entry_id;primaryKey"`
	AccountID string    `gorm:"column:account_id"`
	Amount    int64     `gorm:"column:amount"`
	Kind      string    `gorm:"column:kind"`
	Reason    string    `gorm:"column:reason"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (entryModel) TableName() string {
	return "ledger_entries"
}

func (m entryModel) toPort() ports.Entry {
	return ports.Entry{
		EntryID:   m.EntryID,
		AccountID: m.AccountID,
		Amount:    m.Amount,
		Kind:      m.Kind,
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

// SystemClock implements ports.Clock using wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var _ ports.Repository = (*Repository)(nil)
