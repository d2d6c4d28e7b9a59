// Package stage holds the per-message processors of the three pipeline stages.
// Each processor implements runner.Handler for its message type.
package stage

import (
	"context"
	"errors"

	"github.com/nikolayk812/cartflow/internal/relay"
)

// ErrPartialUpdate is returned when some cart line updates failed and the
// cart total was therefore left untouched.
var ErrPartialUpdate = errors.New("partial cart update")

// Publisher forwards a processed message to the next stage.
type Publisher interface {
	Publish(ctx context.Context, msg relay.Message) (string, error)
}
