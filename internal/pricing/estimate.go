package pricing

import (
	"context"
	"errors"

	"github.com/angelmondragon/playfunia-backend/pkg/config"
	"github.com/angelmondragon/playfunia-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

// Quote is the price of a party booking. Cents fields are what gets stored.
type Quote struct {
	PackageID        string   `json:"partyPackageId"`
	Guests           int      `json:"guests"`
	ExtraChildren    int      `json:"extraChildren"`
	AddOns           []string `json:"addOns"`
	Subtotal         float64  `json:"subtotal"`
	CleaningFee      float64  `json:"cleaningFee"`
	Total            float64  `json:"total"`
	DepositAmount    float64  `json:"depositAmount"`
	BalanceRemaining float64  `json:"balanceRemaining"`

	TotalCents   int64 `json:"-"`
	DepositCents int64 `json:"-"`
	BalanceCents int64 `json:"-"`
}

type Estimator struct {
	catalog          *Catalog
	cleaningFeeCents int64
	depositPercent   int
}

func NewEstimator(catalog *Catalog, cfg config.BookingsConfig) (*Estimator, error) {
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if cfg.DepositPercent <= 0 || cfg.DepositPercent > 100 {
		return nil, errors.New("deposit percent must be between 1 and 100")
	}
	if cfg.CleaningFeeCents < 0 {
		return nil, errors.New("cleaning fee must not be negative")
	}
	return &Estimator{catalog: catalog, cleaningFeeCents: cfg.CleaningFeeCents, depositPercent: cfg.DepositPercent}, nil
}

// Quote prices a package for a guest count: the base price covers
// BaseChildren, each extra child adds ExtraChildCents, then add-ons and the
// cleaning fee. The deposit is DepositPercent of the total.
func (e *Estimator) Quote(ctx context.Context, packageID string, guests int, addOns []string) (Quote, error) {
	if guests <= 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "Guest count must be at least 1")
	}
	pkg, err := e.catalog.Package(ctx, packageID)
	if err != nil {
		return Quote{}, err
	}
	extras, err := e.catalog.AddOns(ctx, addOns)
	if err != nil {
		return Quote{}, err
	}
	return e.quote(pkg, guests, extras), nil
}

func (e *Estimator) quote(pkg *models.PartyPackage, guests int, extras []models.PartyAddOn) Quote {
	extraChildren := guests - pkg.BaseChildren
	if extraChildren < 0 {
		extraChildren = 0
	}
	subtotal := pkg.BasePriceCents + int64(extraChildren)*pkg.ExtraChildCents
	codes := make([]string, 0, len(extras))
	for _, addOn := range extras {
		codes = append(codes, addOn.Code)
		if addOn.PriceType == models.AddOnPerChild {
			subtotal += addOn.PriceCents * int64(guests)
			continue
		}
		subtotal += addOn.PriceCents
	}
	total := subtotal + e.cleaningFeeCents
	deposit := DepositCents(total, e.depositPercent)
	balance := total - deposit
	if balance < 0 {
		balance = 0
	}
	return Quote{
		PackageID:        pkg.ID,
		Guests:           guests,
		ExtraChildren:    extraChildren,
		AddOns:           codes,
		Subtotal:         FromCents(subtotal),
		CleaningFee:      FromCents(e.cleaningFeeCents),
		Total:            FromCents(total),
		DepositAmount:    FromCents(deposit),
		BalanceRemaining: FromCents(balance),
		TotalCents:       total,
		DepositCents:     deposit,
		BalanceCents:     balance,
	}
}

// DepositCents returns percent of total, rounded to the nearest cent.
func DepositCents(total int64, percent int) int64 {
	return (total*int64(percent) + 50) / 100
}
