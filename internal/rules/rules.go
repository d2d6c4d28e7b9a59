// Package rules routes a cart's products to configuration rules by
// configuration type. Only standalone products are handled today; bundle and
// option resolution are registered by callers when they exist.
package rules

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikolayk812/cartflow/internal/domain"
)

// Rule configures the lines of msg that belong to products.
type Rule interface {
	Apply(ctx context.Context, products []domain.Product, msg *domain.CartMessage) error
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(ctx context.Context, products []domain.Product, msg *domain.CartMessage) error

func (f RuleFunc) Apply(ctx context.Context, products []domain.Product, msg *domain.CartMessage) error {
	return f(ctx, products, msg)
}

// StandaloneRule leaves plain products untouched: there is nothing to configure.
var StandaloneRule = RuleFunc(func(context.Context, []domain.Product, *domain.CartMessage) error {
	return nil
})

type Engine struct {
	log   *slog.Logger
	rules map[domain.ConfigurationType]Rule
}

// NewEngine returns an engine with the standalone rule registered.
func NewEngine(log *slog.Logger) *Engine {
	return &Engine{
		log: log,
		rules: map[domain.ConfigurationType]Rule{
			domain.Standalone: StandaloneRule,
		},
	}
}

// Register installs or replaces the rule for a configuration type.
func (e *Engine) Register(kind domain.ConfigurationType, rule Rule) {
	e.rules[kind] = rule
}

// Apply runs the rules relevant to the products in the cart.
func (e *Engine) Apply(ctx context.Context, products []domain.Product, msg *domain.CartMessage) error {
	if IsStandAlone(products) {
		return e.rules[domain.Standalone].Apply(ctx, products, msg)
	}

	groups := make(map[domain.ConfigurationType][]domain.Product)
	var order []domain.ConfigurationType
	for _, p := range products {
		kind := p.ConfigurationType
		if kind == domain.ConfigurationUnknown && p.IsPlainProduct {
			kind = domain.Standalone
		}
		if _, ok := groups[kind]; !ok {
			order = append(order, kind)
		}
		groups[kind] = append(groups[kind], p)
	}

	for _, kind := range order {
		rule, ok := e.rules[kind]
		if !ok {
			e.log.InfoContext(ctx, "configuration_rule_missing",
				"cart_id", msg.CartID,
				"configuration_type", kind.String(),
				"product_count", len(groups[kind]),
			)
			continue
		}
		if err := rule.Apply(ctx, groups[kind], msg); err != nil {
			return fmt.Errorf("rule[%s].Apply: %w", kind, err)
		}
	}

	return nil
}

// IsStandAlone reports whether every product is plain and needs no configuration.
func IsStandAlone(products []domain.Product) bool {
	for _, p := range products {
		if !p.IsPlainProduct {
			return false
		}
	}
	return true
}
