package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/playfunia-backend/pkg/checkout"
	"github.com/angelmondragon/playfunia-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/playfunia-backend/pkg/errors"
)

const (
	LabelSibling    = "Sibling discount"
	LabelMembership = "Membership discount"
	LabelLineItems  = "Line-item discounts"
	LabelPromo      = "Promo code"

	// NoPaymentMessage is returned when discounts bring a cart to zero.
	NoPaymentMessage = "No payment is required for this cart"

	siblingMinQuantity = 2
)

var siblingRate = decimal.RequireFromString("0.05")

// Calculator prices checkout lines. It holds no state beyond the promo table.
type Calculator struct {
	currency string
	promos   map[string]decimal.Decimal
}

func NewCalculator(cfg config.PaymentsConfig) (*Calculator, error) {
	rates, err := cfg.Promotions()
	if err != nil {
		return nil, err
	}
	promos := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		promos[code] = decimal.NewFromFloat(rate)
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Calculator{currency: currency, promos: promos}, nil
}

func (c *Calculator) Currency() string {
	return c.currency
}

// PromoRate returns the rate of a promo code, matched case-insensitively.
func (c *Calculator) PromoRate(code string) (decimal.Decimal, bool) {
	rate, ok := c.promos[NormalizePromo(code)]
	return rate, ok
}

// NormalizePromo trims and upper-cases a promo code.
func NormalizePromo(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Price computes the authoritative summary of lines. memberDiscountPercent
// is the buyer's active plan discount and is zero for guests. Unknown promo
// codes are ignored.
func (c *Calculator) Price(lines []checkout.LineItem, promoCode string, memberDiscountPercent int) (checkout.Summary, error) {
	if len(lines) == 0 {
		return checkout.Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "Your cart is empty.")
	}
	memberRate := decimal.Zero
	if memberDiscountPercent > 0 {
		memberRate = decimal.NewFromInt(int64(memberDiscountPercent)).Div(hundred)
	}

	summary := checkout.Summary{
		Currency:  c.currency,
		Discounts: []checkout.Discount{},
		Lines:     make([]checkout.SummaryLine, 0, len(lines)),
	}
	subtotal := decimal.Zero
	lineDiscounts := decimal.Zero
	for i, item := range lines {
		line, sub, disc := c.priceLine(i, item, memberRate)
		summary.Lines = append(summary.Lines, line)
		subtotal = subtotal.Add(sub)
		lineDiscounts = lineDiscounts.Add(disc)
	}
	subtotal = roundCurrency(subtotal)
	lineDiscounts = roundCurrency(lineDiscounts)

	beforePromo := roundCurrency(subtotal.Sub(lineDiscounts))
	promo := decimal.Zero
	if rate, ok := c.PromoRate(promoCode); ok {
		promo = roundCurrency(beforePromo.Mul(rate))
	}
	total := decimal.Max(roundCurrency(beforePromo.Sub(promo)), decimal.Zero)

	if lineDiscounts.IsPositive() {
		summary.Discounts = append(summary.Discounts, checkout.Discount{Label: LabelLineItems, Amount: dollars(lineDiscounts)})
	}
	if promo.IsPositive() {
		summary.Discounts = append(summary.Discounts, checkout.Discount{Label: LabelPromo, Amount: dollars(promo)})
	}
	summary.Subtotal = dollars(subtotal)
	summary.Total = dollars(total)
	if !total.IsPositive() {
		return summary, pkgerrors.New(pkgerrors.CodeValidation, NoPaymentMessage)
	}
	return summary, nil
}

func (c *Calculator) priceLine(index int, item checkout.LineItem, memberRate decimal.Decimal) (checkout.SummaryLine, decimal.Decimal, decimal.Decimal) {
	line := checkout.SummaryLine{
		CartIndex: index,
		ItemID:    item.ItemID,
		Type:      item.Type,
		Label:     item.Label,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Discounts: []checkout.Discount{},
	}
	unit := decimal.NewFromFloat(item.UnitPrice)

	if item.Type == checkout.ItemMembership {
		subtotal := roundCurrency(unit)
		line.Quantity = 1
		line.Subtotal = dollars(subtotal)
		line.Total = line.Subtotal
		return line, subtotal, decimal.Zero
	}

	subtotal := roundCurrency(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
	discounted := decimal.Zero
	if item.Quantity >= siblingMinQuantity {
		sibling := roundCurrency(subtotal.Mul(siblingRate))
		if sibling.IsPositive() {
			line.Discounts = append(line.Discounts, checkout.Discount{Label: LabelSibling, Amount: dollars(sibling)})
			discounted = discounted.Add(sibling)
		}
	}
	if memberRate.IsPositive() {
		member := roundCurrency(subtotal.Sub(discounted).Mul(memberRate))
		if member.IsPositive() {
			line.Discounts = append(line.Discounts, checkout.Discount{Label: LabelMembership, Amount: dollars(member)})
			discounted = discounted.Add(member)
		}
	}
	total := decimal.Max(roundCurrency(subtotal.Sub(discounted)), decimal.Zero)

	line.Subtotal = dollars(subtotal)
	line.Discount = dollars(discounted)
	line.Total = dollars(total)
	return line, subtotal, discounted
}

// PerUnit spreads a line total across its quantity, rounded to cents.
func PerUnit(line checkout.SummaryLine) float64 {
	if line.Quantity <= 0 {
		return line.UnitPrice
	}
	return dollars(decimal.NewFromFloat(line.Total).Div(decimal.NewFromInt(int64(line.Quantity))))
}
