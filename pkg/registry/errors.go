package registry

import (
	"errors"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

var errNotRegistered = errors.New("no value provider registered")

// NewValueRetrievalError wraps a provider failure for node id.
func NewValueRetrievalError(id string, err error) error {
	return &domain.ValueRetrievalError{NodeID: id, Err: err}
}
