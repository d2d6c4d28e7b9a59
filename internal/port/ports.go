package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
)

type CatalogRepository interface {
	QueryProducts(ctx context.Context, productIDs []uuid.UUID) ([]domain.Product, error)
	QueryPriceListItems(ctx context.Context, priceListID uuid.UUID, productIDs []uuid.UUID) ([]domain.PriceListItem, error)
}

type CartRepository interface {
	GetCart(ctx context.Context, cartID uuid.UUID) (domain.Cart, error)
	UpdateCart(ctx context.Context, update domain.CartUpdate) error
	UpdateItemPrices(ctx context.Context, cartID uuid.UUID, items []domain.PricedItem) error
	QueryItems(ctx context.Context, cartID uuid.UUID, cartItemIDs []uuid.UUID) ([]domain.CartItemInfo, error)
}

// Entry is one stream record as delivered to a consumer group member.
type Entry struct {
	ID         string
	Fields     []Field
	Deliveries int64
}

// Field keeps entry fields in the order the broker returned them.
type Field struct {
	Name  string
	Value string
}

type StreamBroker interface {
	EnsureGroup(ctx context.Context, stream, group string) error
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Entry, error)
	ClaimStale(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]Entry, error)
	Ack(ctx context.Context, stream, group string, ids ...string) error
	Delete(ctx context.Context, stream string, ids ...string) error
	Append(ctx context.Context, stream string, fields []Field) (string, error)
}
