// Package pricing computes cart line and total prices from a price-list snapshot.
package pricing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/shopspring/decimal"
)

// UnitPrice is a product's price and the currency code the price list gives it.
type UnitPrice struct {
	Amount   decimal.Decimal
	Currency string
}

// Times returns the line amount for quantity units.
func (u UnitPrice) Times(quantity int) decimal.Decimal {
	return u.Amount.Mul(decimal.NewFromInt(int64(quantity)))
}

// Lookup maps a product to its unit price.
type Lookup map[uuid.UUID]UnitPrice

// NewLookup indexes price-list items by product; the first record for a
// product wins. A currency that is not ISO 4217 is kept as sent and reported
// in warnings.
func NewLookup(items []domain.PriceListItem) (Lookup, []error) {
	lookup := make(Lookup, len(items))
	var warnings []error

	for _, item := range items {
		if _, ok := lookup[item.ProductID]; ok {
			continue
		}

		if _, err := domain.ParseMoney(item.Price, item.Currency); err != nil {
			warnings = append(warnings, fmt.Errorf("product[%s]: %w", item.ProductID, err))
		}
		lookup[item.ProductID] = UnitPrice{Amount: item.Price, Currency: item.Currency}
	}

	return lookup, warnings
}

// Result is the priced cart plus the lines that had no price.
type Result struct {
	Response domain.PricingResponse
	Skipped  []domain.CartItemInfo
}

// CalculateCartPrice prices every line whose product is in the lookup.
// Lines without a price contribute neither an item nor an amount.
func CalculateCartPrice(msg domain.CartMessage, lookup Lookup) Result {
	resp := domain.PricingResponse{
		CartID:      msg.CartID,
		PriceListID: msg.PriceListID,
		TotalPrice:  decimal.Zero,
		CartItems:   make([]domain.PricedItem, 0, len(msg.CartItems)),
	}
	var skipped []domain.CartItemInfo

	for _, item := range msg.CartItems {
		unit, ok := lookup[item.ProductID]
		if !ok {
			skipped = append(skipped, item)
			continue
		}

		line := unit.Times(item.Quantity)
		resp.TotalPrice = resp.TotalPrice.Add(line)
		resp.CartItems = append(resp.CartItems, domain.PricedItem{
			CartItemID: item.CartItemID,
			Price:      line,
			Currency:   unit.Currency,
			Quantity:   item.Quantity,
		})
	}

	return Result{Response: resp, Skipped: skipped}
}

// RepriceDelta turns an absolute total into the amount to add to a cart whose
// lines are currently stored at the given prices.
func RepriceDelta(total decimal.Decimal, stored []domain.CartItemInfo) decimal.Decimal {
	old := decimal.Zero
	for _, item := range stored {
		old = old.Add(item.Price)
	}
	return total.Sub(old)
}
