package runner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nikolayk812/cartflow/internal/port"
)

// ErrDecode marks an entry whose payload can never be processed.
var ErrDecode = errors.New("undecodable entry")

// MessageField is the field producers put the JSON payload in.
const MessageField = "message"

type validator interface {
	Validate() error
}

// Decode unmarshals the entry payload into T. Every producer in the pipeline
// writes the message field, so it is preferred; entries without it fall back
// to the last non-empty field. The Redis client returns fields unordered,
// which makes "last" only meaningful for the sorted order the broker reports.
func Decode[T any](fields []port.Field) (T, error) {
	var msg T

	payload, ok := pickPayload(fields)
	if !ok {
		return msg, fmt.Errorf("%w: no payload field", ErrDecode)
	}

	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, fmt.Errorf("%w: json.Unmarshal: %w", ErrDecode, err)
	}

	if v, ok := any(msg).(validator); ok {
		if err := v.Validate(); err != nil {
			return msg, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	}

	return msg, nil
}

func pickPayload(fields []port.Field) (string, bool) {
	var (
		last  string
		found bool
	)
	for _, f := range fields {
		if f.Name == MessageField && f.Value != "" {
			return f.Value, true
		}
		if f.Value != "" {
			last, found = f.Value, true
		}
	}
	return last, found
}
