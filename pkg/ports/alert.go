package ports

import (
	"context"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// AlertSink is the user visible alert channel. Implementations must not
// block for long; alerts are raised from orchestration goroutines.
type AlertSink interface {
	Alert(ctx context.Context, alert domain.Alert)
}

// AlertFunc adapts a function to the AlertSink interface.
type AlertFunc func(ctx context.Context, alert domain.Alert)

func (f AlertFunc) Alert(ctx context.Context, alert domain.Alert) {
	f(ctx, alert)
}
