package ports

import (
	"context"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// ReexecutionBackend is the remote side of a page re-execution.
// rpc.ReexecutionService is the production implementation.
type ReexecutionBackend interface {
	// ReexecutePage submits the page values and re-executes nodeID.
	ReexecutePage(ctx context.Context, nodeID string, values map[string]any) (*domain.ReexecutionResult, error)

	// GetPage polls the nodes reset by a previous round.
	GetPage(ctx context.Context, resetNodes []string) (*domain.ReexecutionResult, error)
}
