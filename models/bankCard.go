package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
	"github.com/shopspring/decimal"
)

type BankCard struct {
	ID   int    `gorm:"primary_key" json:"id"`
	Name string `gorm:"index;size:100;not null" json:"name" binding:"required"`
	// InitialBalance is the immutable baseline; never changed after creation.
	InitialBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"initial_balance"`
	// CurrentBalance is derived data owned by the recompute engine.
	// It is overwritten wholesale and must never be hand-edited.
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_balance"`
	IsActive       *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewBankCard struct {
	Name           string          `json:"name" binding:"required"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func (input *NewBankCard) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[BankCard](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[BankCard](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateBankCard(ctx context.Context, input *NewBankCard) (*BankCard, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	card := BankCard{
		Name:           input.Name,
		InitialBalance: input.InitialBalance,
		CurrentBalance: input.InitialBalance,
		IsActive:       utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateBankCard renames only. InitialBalance is fixed at creation and
// CurrentBalance belongs to the recompute engine.
func UpdateBankCard(ctx context.Context, id int, input *NewBankCard) (*BankCard, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	card, err := utils.FetchModel[BankCard](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&card).Updates(map[string]interface{}{
		"Name": input.Name,
	}).Error
	if err != nil {
		return nil, err
	}
	return card, nil
}

func DeleteBankCard(ctx context.Context, id int) (*BankCard, error) {
	card, err := utils.FetchModel[BankCard](ctx, id)
	if err != nil {
		return nil, err
	}

	// Do not delete a card referenced by any report's cash-box rows or by
	// manual transactions; the ledger would lose its source rows.
	count, err := utils.ResourceCountWhere[StaffActivityRow](ctx, "is_cash_box = ? AND card_id = ?", true, id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("card is used by report cash-box rows")
	}
	count, err = utils.ResourceCountWhere[BankCardTransaction](ctx, "card_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("card has transactions")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&card).Error; err != nil {
		return nil, err
	}
	return card, nil
}

func GetBankCard(ctx context.Context, id int) (*BankCard, error) {
	return utils.FetchModel[BankCard](ctx, id)
}

func GetBankCards(ctx context.Context, name *string) ([]*BankCard, error) {
	db := config.GetDB()
	var results []*BankCard

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
