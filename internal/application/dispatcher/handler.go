package dispatcher

import (
	"context"

	"github.com/garyjia/claim-workflow/internal/domain/event"
)

// Handler reacts to a committed claim event
type Handler func(ctx context.Context, evt *event.Event) error

type subscription struct {
	name    string
	handler Handler
}
