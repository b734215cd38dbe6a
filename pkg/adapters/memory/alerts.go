package memory

import (
	"context"
	"sync"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// AlertCollector implements ports.AlertSink by recording every alert.
type AlertCollector struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

// NewAlertCollector creates an empty collector.
func NewAlertCollector() *AlertCollector {
	return &AlertCollector{}
}

// Alert records a.
func (c *AlertCollector) Alert(ctx context.Context, a domain.Alert) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, a)
}

// Alerts returns the recorded alerts in arrival order.
func (c *AlertCollector) Alerts() []domain.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Alert(nil), c.alerts...)
}

// Reset forgets every recorded alert.
func (c *AlertCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = nil
}
