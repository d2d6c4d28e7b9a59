package stage_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/cartflow/internal/domain"
	"github.com/nikolayk812/cartflow/internal/relay"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var errUnavailable = errors.New("service unavailable")

type fakeCatalog struct {
	mu          sync.Mutex
	products    map[uuid.UUID]domain.Product
	prices      map[uuid.UUID]domain.PriceListItem
	failProduct uuid.UUID
	calls       int
}

func (f *fakeCatalog) QueryProducts(_ context.Context, ids []uuid.UUID) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var out []domain.Product
	for _, id := range ids {
		if id == f.failProduct {
			return nil, errUnavailable
		}
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) QueryPriceListItems(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]domain.PriceListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var out []domain.PriceListItem
	for _, id := range ids {
		if id == f.failProduct {
			return nil, errUnavailable
		}
		if p, ok := f.prices[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCarts struct {
	mu        sync.Mutex
	cart      domain.Cart
	stored    map[uuid.UUID]domain.CartItemInfo
	failItem  uuid.UUID
	patched   []domain.PricedItem
	updates   []domain.CartUpdate
	getCalled bool
}

func (f *fakeCarts) GetCart(context.Context, uuid.UUID) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalled = true
	return f.cart, nil
}

func (f *fakeCarts) UpdateCart(_ context.Context, update domain.CartUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil
}

func (f *fakeCarts) UpdateItemPrices(_ context.Context, _ uuid.UUID, items []domain.PricedItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range items {
		if item.CartItemID == f.failItem {
			return errUnavailable
		}
	}
	f.patched = append(f.patched, items...)
	return nil
}

func (f *fakeCarts) QueryItems(_ context.Context, _ uuid.UUID, ids []uuid.UUID) ([]domain.CartItemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.CartItemInfo
	for _, id := range ids {
		if id == f.failItem {
			return nil, errUnavailable
		}
		if item, ok := f.stored[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []relay.Message
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, msg relay.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, msg)
	return "1-1", nil
}
