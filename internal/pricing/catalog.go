package pricing

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

// Catalog reads the seeded plan, package and add-on tables.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Plans(ctx context.Context) ([]models.MembershipPlan, error) {
	var plans []models.MembershipPlan
	err := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("monthly_price_cents ASC").
		Find(&plans).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list membership plans")
	}
	return plans, nil
}

func (c *Catalog) Plan(ctx context.Context, id string) (*models.MembershipPlan, error) {
	var plan models.MembershipPlan
	err := c.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", strings.TrimSpace(id), true).
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Membership plan not found").WithDetails(map[string]any{"membershipId": id})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership plan")
	}
	return &plan, nil
}

func (c *Catalog) Packages(ctx context.Context) ([]models.PartyPackage, error) {
	var packages []models.PartyPackage
	err := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("base_price_cents ASC").
		Find(&packages).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list party packages")
	}
	return packages, nil
}

func (c *Catalog) Package(ctx context.Context, id string) (*models.PartyPackage, error) {
	var pkg models.PartyPackage
	err := c.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", strings.TrimSpace(id), true).
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Party package not found").WithDetails(map[string]any{"partyPackageId": id})
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party package")
	}
	return &pkg, nil
}

// AddOns resolves add-on codes in request order. An unknown code fails validation.
func (c *Catalog) AddOns(ctx context.Context, codes []string) ([]models.PartyAddOn, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	var rows []models.PartyAddOn
	if err := c.db.WithContext(ctx).Where("code IN ? AND is_active = ?", codes, true).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load party add-ons")
	}
	byCode := make(map[string]models.PartyAddOn, len(rows))
	for _, row := range rows {
		byCode[row.Code] = row
	}
	out := make([]models.PartyAddOn, 0, len(codes))
	for _, code := range codes {
		row, ok := byCode[code]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Unknown add-on: "+code)
		}
		out = append(out, row)
	}
	return out, nil
}
