package gql

import (
	"encoding/json"
	"sync"

	"github.com/pumped-fn/pumped-gql/types"
)

// fakeClient hands out manually driven sources and records every call.
type fakeClient struct {
	mu      sync.Mutex
	sources []*fakeSource
}

func (c *fakeClient) ExecuteQuery(req types.Request, ec types.ExecutionContext) types.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	src := &fakeSource{
		request: req,
		context: ec,
		op:      &types.Operation{ID: "op", Kind: types.KindQuery, Request: req, Context: ec},
	}
	c.sources = append(c.sources, src)
	return src
}

func (c *fakeClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sources)
}

func (c *fakeClient) last() *fakeSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sources) == 0 {
		return nil
	}
	return c.sources[len(c.sources)-1]
}

type fakeSource struct {
	request types.Request
	context types.ExecutionContext
	op      *types.Operation

	mu            sync.Mutex
	subscriptions int
	cancels       int
	next          func(types.OperationResult)
	complete      func()
}

func (s *fakeSource) Subscribe(next func(types.OperationResult), complete func()) func() {
	s.mu.Lock()
	s.subscriptions++
	s.next, s.complete = next, complete
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.cancels++
		s.mu.Unlock()
	}
}

// emit pushes data to the latest subscriber, even after it was cancelled.
func (s *fakeSource) emit(data string) {
	s.mu.Lock()
	next := s.next
	s.mu.Unlock()
	if next != nil {
		next(types.OperationResult{Operation: s.op, Data: json.RawMessage(data)})
	}
}

func (s *fakeSource) emitResult(r types.OperationResult) {
	s.mu.Lock()
	next := s.next
	s.mu.Unlock()
	if next != nil {
		r.Operation = s.op
		next(r)
	}
}

func (s *fakeSource) finish() {
	s.mu.Lock()
	complete := s.complete
	s.mu.Unlock()
	if complete != nil {
		complete()
	}
}

func (s *fakeSource) stats() (subscriptions, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriptions, s.cancels
}
