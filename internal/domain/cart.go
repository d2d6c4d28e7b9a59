package domain

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartMessage struct {
	CartID         uuid.UUID      `json:"cartId"`
	PriceListID    uuid.UUID      `json:"priceListId"`
	CartAction     CartAction     `json:"cartAction"`
	CartItems      []CartItemInfo `json:"cartItems"`
	AdditionalInfo Metadata       `json:"additionalInfo,omitempty"`
}

// Carrier exposes the trace metadata so relays and runners can inject and extract it.
func (m *CartMessage) Carrier() *Metadata { return &m.AdditionalInfo }

// UnmarshalJSON also reads metadata sent under the legacy key.
func (m *CartMessage) UnmarshalJSON(data []byte) error {
	type plain CartMessage
	var aux struct {
		plain
		Legacy Metadata `json:"AdditonalInfo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*m = CartMessage(aux.plain)
	if len(m.AdditionalInfo) == 0 && len(aux.Legacy) > 0 {
		m.AdditionalInfo = aux.Legacy
	}
	return nil
}

// Validate rejects messages that cannot be processed by any stage.
func (m CartMessage) Validate() error {
	if m.CartID == uuid.Nil {
		return fmt.Errorf("cartID is empty")
	}

	for _, item := range m.CartItems {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item[%s]: %w", item.CartItemID, err)
		}
	}

	return nil
}

// ProductIDs returns the distinct product IDs in cart order.
func (m CartMessage) ProductIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(m.CartItems))
	ids := make([]uuid.UUID, 0, len(m.CartItems))

	for _, item := range m.CartItems {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	return ids
}

// CartItemIDs returns the cart item IDs in cart order.
func (m CartMessage) CartItemIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.CartItems))
	for _, item := range m.CartItems {
		ids = append(ids, item.CartItemID)
	}
	return ids
}

type CartItemInfo struct {
	CartItemID           uuid.UUID       `json:"cartItemId"`
	ProductID            uuid.UUID       `json:"productId"`
	Quantity             int             `json:"quantity"`
	Price                decimal.Decimal `json:"price"`
	Currency             string          `json:"currency,omitempty"`
	LineType             LineType        `json:"lineType"`
	IsPrimaryLine        bool            `json:"isPrimaryLine"`
	ExternalID           *string         `json:"externalId,omitempty"`
	PrimaryTaxLineNumber int             `json:"primaryTaxLineNumber,omitempty"`
}

func (i CartItemInfo) Validate() error {
	if i.Quantity <= 0 {
		return fmt.Errorf("quantity must be greater than zero: %d", i.Quantity)
	}
	return nil
}

type PricingResponse struct {
	CartID         uuid.UUID       `json:"cartId"`
	PriceListID    uuid.UUID       `json:"priceListId"`
	TotalPrice     decimal.Decimal `json:"totalPrice"`
	CartItems      []PricedItem    `json:"cartItems"`
	AdditionalInfo Metadata        `json:"additionalInfo,omitempty"`
}

func (r *PricingResponse) Carrier() *Metadata { return &r.AdditionalInfo }

// UnmarshalJSON also reads metadata sent under the legacy key.
func (r *PricingResponse) UnmarshalJSON(data []byte) error {
	type plain PricingResponse
	var aux struct {
		plain
		Legacy Metadata `json:"AdditonalInfo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = PricingResponse(aux.plain)
	if len(r.AdditionalInfo) == 0 && len(aux.Legacy) > 0 {
		r.AdditionalInfo = aux.Legacy
	}
	return nil
}

func (r PricingResponse) Validate() error {
	if r.CartID == uuid.Nil {
		return fmt.Errorf("cartID is empty")
	}
	return nil
}

type PricedItem struct {
	CartItemID uuid.UUID       `json:"cartItemId"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Quantity   int             `json:"quantity"`
}

// Cart is the aggregate view returned by the cart service.
type Cart struct {
	CartID      uuid.UUID       `json:"cartId"`
	Name        string          `json:"name,omitempty"`
	PriceListID uuid.UUID       `json:"priceListId"`
	Status      string          `json:"status"`
	Price       decimal.Decimal `json:"price"`
}

type CartUpdate struct {
	CartID      uuid.UUID       `json:"cartId"`
	PriceListID uuid.UUID       `json:"priceListId"`
	Status      CartStatus      `json:"status"`
	Price       decimal.Decimal `json:"price"`
}
