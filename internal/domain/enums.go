package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type CartAction int

const (
	ConfigureAndPrice CartAction = iota
	Price
	Reprice
)

var cartActionNames = map[CartAction]string{
	ConfigureAndPrice: "ConfigureAndPrice",
	Price:             "Price",
	Reprice:           "Reprice",
}

func (a CartAction) String() string {
	if name, ok := cartActionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("CartAction(%d)", int(a))
}

func (a CartAction) MarshalText() ([]byte, error) {
	name, ok := cartActionNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown cart action: %d", int(a))
	}
	return []byte(name), nil
}

func (a *CartAction) UnmarshalText(text []byte) error {
	for action, name := range cartActionNames {
		if name == string(text) {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("unknown cart action: %q", text)
}

type LineType int

const (
	LineTypeNone LineType = iota
	LineTypeProductService
)

func (t LineType) String() string {
	switch t {
	case LineTypeNone:
		return "None"
	case LineTypeProductService:
		return "ProductService"
	default:
		return fmt.Sprintf("LineType(%d)", int(t))
	}
}

// UnmarshalJSON accepts the numeric form and the case-insensitive name, so
// both "productService" and 1 decode.
func (t *LineType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = LineType(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("line type: %w", err)
	}

	for _, candidate := range []LineType{LineTypeNone, LineTypeProductService} {
		if strings.EqualFold(candidate.String(), s) {
			*t = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown line type: %q", s)
}

type ConfigurationType int

const (
	ConfigurationUnknown ConfigurationType = iota
	Standalone
	Bundle
	Option
)

func (t ConfigurationType) String() string {
	switch t {
	case Standalone:
		return "Standalone"
	case Bundle:
		return "Bundle"
	case Option:
		return "Option"
	default:
		return fmt.Sprintf("ConfigurationType(%d)", int(t))
	}
}

// CartStatus is sent to the cart service by name.
type CartStatus string

const (
	CartStatusUnknown    CartStatus = "Unknown"
	CartStatusCreated    CartStatus = "Created"
	CartStatusConfigured CartStatus = "Configured"
	CartStatusPriced     CartStatus = "Priced"
)

// UnmarshalJSON accepts the numeric form and the case-insensitive name.
func (t *ConfigurationType) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*t = ConfigurationType(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("configuration type: %w", err)
	}

	for _, candidate := range []ConfigurationType{Standalone, Bundle, Option} {
		if strings.EqualFold(candidate.String(), s) {
			*t = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown configuration type: %q", s)
}
