package accounts

import (
	"context"

	"github.com/angelmondragon/ecobuy/pkg/config"
	"github.com/angelmondragon/ecobuy/pkg/db"
	"github.com/angelmondragon/ecobuy/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes account persistence.
type Repository struct {
	client *db.Client
	db     *gorm.DB
}

func NewRepository(client *db.Client) *Repository {
	return &Repository{client: client, db: client.DB()}
}

func (r *Repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByEmail expects an already normalized address.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *Repository) FindByGoogleID(ctx context.Context, googleID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("google_id = ?", googleID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// Save writes every column of account.
func (r *Repository) Save(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// UpdateFields writes the given columns only.
func (r *Repository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Account{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Mutate loads the account, applies fn and saves it in one transaction.
// Postgres rows are locked for the duration.
func (r *Repository) Mutate(ctx context.Context, id string, fn func(*models.Account) error) (*models.Account, error) {
	var out models.Account
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		q := tx
		if r.client.Driver() == config.DBDriverPostgres {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&out, "id = ?", id).Error; err != nil {
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
