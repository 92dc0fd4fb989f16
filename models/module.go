package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/fieldops_backend/config"
	"bitbucket.org/mmdatafocus/fieldops_backend/utils"
)

// FieldModule is a crew/site grouping. A DailyReport is keyed by
// (date, creator, module); reports from different modules for the same day
// are merged by the aggregate view.
type FieldModule struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Details   string    `gorm:"type:text" json:"details"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFieldModule struct {
	Name    string `json:"name" binding:"required"`
	Details string `json:"details"`
}

func (input *NewFieldModule) validate(ctx context.Context, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[FieldModule](ctx, id); err != nil {
			return err
		}
	}
	if err := utils.ValidateUnique[FieldModule](ctx, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateFieldModule(ctx context.Context, input *NewFieldModule) (*FieldModule, error) {
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	module := FieldModule{
		Name:     input.Name,
		Details:  input.Details,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&module).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

func UpdateFieldModule(ctx context.Context, id int, input *NewFieldModule) (*FieldModule, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	module, err := utils.FetchModel[FieldModule](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&module).Updates(map[string]interface{}{
		"Name":    input.Name,
		"Details": input.Details,
	}).Error
	if err != nil {
		return nil, err
	}
	return module, nil
}

// DeleteFieldModule is gated behind the external one-time-code step: the
// caller must have requested a code via verifier.SendCode and present it here.
// A module with reports cannot be deleted.
func DeleteFieldModule(ctx context.Context, id int, verifier Verifier, code string) (*FieldModule, error) {
	module, err := utils.FetchModel[FieldModule](ctx, id)
	if err != nil {
		return nil, err
	}

	if verifier != nil {
		ok, err := verifier.VerifyCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("verification code is invalid")
		}
	}

	count, err := utils.ResourceCountWhere[DailyReport](ctx, "module_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("module has daily reports")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&module).Error; err != nil {
		return nil, err
	}
	return module, nil
}

func GetFieldModule(ctx context.Context, id int) (*FieldModule, error) {
	return utils.FetchModel[FieldModule](ctx, id)
}

func GetFieldModules(ctx context.Context, name *string) ([]*FieldModule, error) {
	db := config.GetDB()
	var results []*FieldModule

	dbCtx := db.WithContext(ctx)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if err := dbCtx.Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
