package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the admin service's product record as the config stage needs it.
type Product struct {
	ProductID         uuid.UUID         `json:"productId"`
	Name              string            `json:"name,omitempty"`
	ProductCode       string            `json:"productCode,omitempty"`
	ConfigurationType ConfigurationType `json:"configurationType"`
	IsPlainProduct    bool              `json:"isPlainProduct"`
	IsActive          bool              `json:"isActive"`
	IsCustomizable    bool              `json:"isCustomizable"`
	HasOptions        bool              `json:"hasOptions"`
	HasAttributes     bool              `json:"hasAttributes"`
	HasDefaults       bool              `json:"hasDefaults"`
	StockKeepingUnit  *string           `json:"stockKeepingUnit,omitempty"`
	ExternalID        *string           `json:"externalId,omitempty"`
	EffectiveDate     *time.Time        `json:"effectiveDate,omitempty"`
	ExpirationDate    *time.Time        `json:"expirationDate,omitempty"`
}

// PriceListItem is a product's entry in a price list.
type PriceListItem struct {
	PriceListItemID uuid.UUID       `json:"priceListItemId"`
	ProductID       uuid.UUID       `json:"productId"`
	PriceListID     uuid.UUID       `json:"priceListId"`
	Name            string          `json:"name,omitempty"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	IsActive        bool            `json:"isActive"`
	DefaultQuantity int             `json:"defaultQuantity,omitempty"`
	EffectiveDate   *time.Time      `json:"effectiveDate,omitempty"`
	ExpirationDate  *time.Time      `json:"expirationDate,omitempty"`
}
