package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// Backend method names.
const (
	MethodCallNodeDataService      = "NodeService.callNodeDataService"
	MethodChangeNodeStates         = "NodeService.changeNodeStates"
	MethodUpdateDataPointSelection = "NodeService.updateDataPointSelection"
	MethodReexecutePage            = "ReexecutionService.reexecutePage"
	MethodGetPage                  = "ReexecutionService.getPage"
)

// Target identifies the workflow a page belongs to. Every service call
// starts with these two positional params.
type Target struct {
	ProjectID  string `json:"projectId" yaml:"projectId" toml:"project_id"`
	WorkflowID string `json:"workflowId" yaml:"workflowId" toml:"workflow_id"`
}

// NodeService wraps the per-node backend methods.
type NodeService struct {
	client *Client
	target Target
}

// NewNodeService binds the node service to one workflow.
func NewNodeService(c *Client, target Target) *NodeService {
	return &NodeService{client: c, target: target}
}

// CallNodeDataService forwards a data service request of a node view.
func (s *NodeService) CallNodeDataService(ctx context.Context, nodeID, extensionType, serviceType, request string) (json.RawMessage, error) {
	return s.client.Call(ctx, MethodCallNodeDataService,
		s.target.ProjectID, s.target.WorkflowID, nodeID, extensionType, serviceType, request)
}

// ChangeNodeStates applies a state action ("reset", "execute", ...) to nodes.
func (s *NodeService) ChangeNodeStates(ctx context.Context, nodeIDs []string, action string) error {
	_, err := s.client.Call(ctx, MethodChangeNodeStates,
		s.target.ProjectID, s.target.WorkflowID, nodeIDs, action)
	return err
}

// UpdateDataPointSelection publishes a selection change of a node.
func (s *NodeService) UpdateDataPointSelection(ctx context.Context, nodeID, mode string, selection []string) (json.RawMessage, error) {
	if selection == nil {
		selection = []string{}
	}
	return s.client.Call(ctx, MethodUpdateDataPointSelection,
		s.target.ProjectID, s.target.WorkflowID, nodeID, mode, selection)
}

// ReexecutionService starts page re-executions and polls their progress.
type ReexecutionService struct {
	client *Client
	target Target
}

// NewReexecutionService binds the re-execution service to one workflow.
func NewReexecutionService(c *Client, target Target) *ReexecutionService {
	return &ReexecutionService{client: c, target: target}
}

// ReexecutePage submits the current values of the page and re-executes
// nodeID and everything downstream of it.
func (s *ReexecutionService) ReexecutePage(ctx context.Context, nodeID string, values map[string]any) (*domain.ReexecutionResult, error) {
	if values == nil {
		values = map[string]any{}
	}
	raw, err := s.client.Call(ctx, MethodReexecutePage,
		s.target.ProjectID, s.target.WorkflowID, nodeID, values)
	if err != nil {
		return nil, err
	}
	return DecodeResult(raw)
}

// GetPage polls the state of the nodes reset by a previous round.
func (s *ReexecutionService) GetPage(ctx context.Context, resetNodes []string) (*domain.ReexecutionResult, error) {
	if resetNodes == nil {
		resetNodes = []string{}
	}
	raw, err := s.client.Call(ctx, MethodGetPage,
		s.target.ProjectID, s.target.WorkflowID, resetNodes)
	if err != nil {
		return nil, err
	}
	return DecodeResult(raw)
}

// DecodeResult decodes a re-execution payload. An empty or null result
// decodes to an empty ReexecutionResult, which callers treat as malformed.
func DecodeResult(raw json.RawMessage) (*domain.ReexecutionResult, error) {
	res := &domain.ReexecutionResult{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return res, nil
	}
	if err := json.Unmarshal(trimmed, res); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResult, err)
	}
	return res, nil
}
