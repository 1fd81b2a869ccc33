// Package composite fans endpoint registration and snapshots out to several
// aggregators.
package composite

import (
	"context"
	"errors"

	"github.com/agentsh/mcpscope/internal/store"
	"github.com/agentsh/mcpscope/pkg/types"
)

type Store struct {
	primary store.Aggregator
	others  []store.Aggregator
}

// New returns a Store writing to primary and then every other aggregator.
// Nil aggregators are ignored.
func New(primary store.Aggregator, others ...store.Aggregator) *Store {
	s := &Store{primary: primary}
	for _, o := range others {
		if o != nil {
			s.others = append(s.others, o)
		}
	}
	return s
}

// Len reports how many aggregators are attached.
func (s *Store) Len() int {
	n := len(s.others)
	if s.primary != nil {
		n++
	}
	return n
}

func (s *Store) all() []store.Aggregator {
	out := make([]store.Aggregator, 0, s.Len())
	if s.primary != nil {
		out = append(out, s.primary)
	}
	return append(out, s.others...)
}

// RegisterEndpoint registers with every aggregator and returns the first
// error. A failure in one does not stop the others.
func (s *Store) RegisterEndpoint(ctx context.Context, ep store.Endpoint) error {
	var firstErr error
	for _, a := range s.all() {
		if err := a.RegisterEndpoint(ctx, ep); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StoreSnapshot forwards inv to every aggregator and joins their errors.
func (s *Store) StoreSnapshot(ctx context.Context, endpointID string, inv *types.Inventory) error {
	var errs []error
	for _, a := range s.all() {
		if err := a.StoreSnapshot(ctx, endpointID, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) Close() error {
	var firstErr error
	for _, a := range s.all() {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
