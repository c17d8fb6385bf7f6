package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainerrors "agegate/contexts/identity-access/accounts-service/domain/errors"
	"agegate/contexts/identity-access/accounts-service/ports"

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

func (r *Repository) EnsureAccount(ctx context.Context, accountID string, displayName string, now time.Time) (ports.Account, error) {
	row := accountModel{
		AccountID:   accountID,
		DisplayName: displayName,
		Role:        string(ports.RoleRequester),
		CreatedAt:   now.UTC(),
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

func (r *Repository) SetRole(ctx context.Context, accountID string, role ports.Role) (ports.Account, error) {
	result := r.db.WithContext(ctx).
		Model(&accountModel{}).
		Where("account_id = ?", accountID).
		Update("role", string(role))
	if result.Error != nil {
		return ports.Account{}, result.Error
	}
	if result.RowsAffected == 0 {
		return ports.Account{}, domainerrors.ErrAccountNotFound
	}
	return r.GetAccount(ctx, accountID)
}

func (r *Repository) ListByRole(ctx context.Context, role ports.Role) ([]ports.Account, error) {
	var rows []accountModel
	if err := r.db.WithContext(ctx).
		Where("role = ?", string(role)).
		Order("account_id ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}
	items := make([]ports.Account, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toPort())
	}
	return items, nil
}

type accountModel struct {
	AccountID   string    `gorm:"column:account_id;primaryKey"`
	DisplayName string    `gorm:"column:display_name"`
	Role        string    `gorm:"column:role"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (accountModel) TableName() string {
	return "accounts"
}

func (m accountModel) toPort() ports.Account {
	return ports.Account{
		AccountID:   m.AccountID,
		DisplayName: m.DisplayName,
		Role:        ports.Role(m.Role),
		CreatedAt:   m.CreatedAt.UTC(),
	}
}

// SystemClock implements ports.Clock using wall-clock UTC time.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

var _ ports.Repository = (*Repository)(nil)
