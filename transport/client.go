// Package transport is the HTTP GraphQL client driven by the query pipeline.
//
// A Client turns a request and an execution context into a lazy Source. The
// request policy of the context decides how the client's result cache and the
// network are combined; a positive poll interval keeps the source refetching
// until it is cancelled.
package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"runtime"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/pumped-fn/pumped-gql/types"
)

// ErrNoEndpoint is reported when neither the options nor the context name a URL.
var ErrNoEndpoint = errors.New("no GraphQL endpoint configured")

// Client executes GraphQL queries over HTTP.
type Client struct {
	opts       Options
	httpClient *http.Client
	cache      *ResultCache
	group      singleflight.Group
	logger     *slog.Logger
	setupErr   error
}

var _ types.Client = (*Client)(nil)

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type responseBody struct {
	Data       json.RawMessage      `json:"data"`
	Errors     []types.GraphQLError `json:"errors"`
	Extensions map[string]any       `json:"extensions"`
}

// New creates a client. It never fails: a transport that cannot be built from
// opts is reported as a network error on every result.
func New(opts Options) *Client {
	c := &Client{
		opts:   opts,
		cache:  opts.Cache,
		logger: opts.Logger,
	}
	if c.cache == nil {
		c.cache = NewResultCache()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.httpClient, c.setupErr = buildHTTPClient(opts)
	if c.setupErr != nil {
		c.logger.Error("invalid transport options", "error", c.setupErr)
	}
	return c
}

// Cache returns the result cache used by the request policies.
func (c *Client) Cache() *ResultCache {
	return c.cache
}

// Options returns the options the client was created with.
func (c *Client) Options() Options {
	return c.opts
}

// ExecuteQuery returns a source for req. Nothing is sent until the source is
// subscribed; every subscription runs independently.
func (c *Client) ExecuteQuery(req types.Request, ec types.ExecutionContext) types.Source {
	return types.SourceFunc(func(next func(types.OperationResult), complete func()) func() {
		op := &types.Operation{
			ID:      uuid.NewString(),
			Kind:    types.KindQuery,
			Request: req,
			Context: ec.Clone(),
		}
		ctx, cancel := context.WithCancel(context.Background())
		e := &emitter{next: next, complete: complete}
		go c.run(ctx, op, e)
		return func() {
			e.stop()
			cancel()
		}
	})
}

// emitter forwards results until stopped. Deliveries are serialised, and
// stop waits for a delivery in progress on another goroutine, so no callback
// runs once stop has returned. A stop issued from inside a callback returns
// at once.
type emitter struct {
	next     func(types.OperationResult)
	complete func()

	mu        sync.Mutex
	stopped   atomic.Bool
	deliverer atomic.Uint64
}

func (e *emitter) deliver(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped.Load() {
		return
	}
	e.deliverer.Store(goroutineID())
	defer e.deliverer.Store(0)
	fn()
}

func (e *emitter) emit(r types.OperationResult) {
	e.deliver(func() {
		e.next(r)
	})
}

func (e *emitter) done() {
	e.deliver(func() {
		e.stopped.Store(true)
		e.complete()
	})
}

func (e *emitter) stop() {
	e.stopped.Store(true)
	if e.deliverer.Load() == goroutineID() {
		return
	}
	// Wait out a delivery running on another goroutine.
	e.mu.Lock()
	defer e.mu.Unlock()
}

// goroutineID parses the id of the calling goroutine from its stack header,
// "goroutine 18 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(fields[1]), 10, 64)
	return id
}

func (c *Client) policy(ec types.ExecutionContext) types.RequestPolicy {
	if ec.RequestPolicy.Valid() {
		return ec.RequestPolicy
	}
	return c.opts.RequestPolicy.OrDefault()
}

// ResultKey identifies the response to req under ec: the request key, the
// endpoint and the merged headers. Results are cached and in-flight fetches
// shared only under equal keys.
func (c *Client) ResultKey(req types.Request, ec types.ExecutionContext) string {
	headers := c.headers(ec)
	h := sha256.New()
	_, _ = io.WriteString(h, c.endpoint(ec))
	h.Write([]byte{0})
	for _, name := range slices.Sorted(maps.Keys(headers)) {
		_, _ = io.WriteString(h, name)
		h.Write([]byte{0})
		_, _ = io.WriteString(h, headers[name])
		h.Write([]byte{0})
	}
	return req.Key + ":" + hex.EncodeToString(h.Sum(nil))
}

func (c *Client) endpoint(ec types.ExecutionContext) string {
	if ec.URL != "" {
		return ec.URL
	}
	return c.opts.URL
}

// headers merges the option headers with the context headers, the latter
// winning. Names are canonicalised as net/http sends them.
func (c *Client) headers(ec types.ExecutionContext) map[string]string {
	out := make(map[string]string, len(c.opts.Headers)+len(ec.Headers))
	for k, v := range c.opts.Headers {
		out[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range ec.Headers {
		out[http.CanonicalHeaderKey(k)] = v
	}
	return out
}

func (c *Client) run(ctx context.Context, op *types.Operation, e *emitter) {
	policy := c.policy(op.Context)
	key := c.ResultKey(op.Request, op.Context)

	cached, hit := c.cache.Load(key)
	switch policy {
	case types.CacheOnly:
		if hit {
			e.emit(withOperation(cached, op))
		} else {
			// A cache-only miss settles with no data.
			e.emit(types.OperationResult{Operation: op})
		}
	case types.CacheFirst:
		if hit {
			e.emit(withOperation(cached, op))
		} else {
			c.fetchAndEmit(ctx, op, policy, key, e)
		}
	case types.CacheAndNetwork:
		if hit {
			stale := withOperation(cached, op)
			stale.Stale = true
			e.emit(stale)
		}
		c.fetchAndEmit(ctx, op, policy, key, e)
	default:
		c.fetchAndEmit(ctx, op, types.NetworkOnly, key, e)
	}

	if op.Context.PollInterval <= 0 {
		e.done()
		return
	}

	ticker := time.NewTicker(op.Context.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.fetchAndEmit(ctx, op, types.NetworkOnly, key, e)
		}
	}
}

func withOperation(r types.OperationResult, op *types.Operation) types.OperationResult {
	r.Operation = op
	return r
}

func (c *Client) fetchAndEmit(ctx context.Context, op *types.Operation, policy types.RequestPolicy, key string, e *emitter) {
	result, ok := c.fetch(ctx, op, policy, key)
	if !ok {
		return
	}
	e.emit(result)
}

// fetch executes op over the network. Concurrent fetches with the same
// policy and result key share one HTTP round trip. It reports false when ctx
// was cancelled first.
func (c *Client) fetch(ctx context.Context, op *types.Operation, policy types.RequestPolicy, key string) (types.OperationResult, bool) {
	ch := c.group.DoChan(string(policy)+"|"+key, func() (any, error) {
		return c.doRequest(context.WithoutCancel(ctx), op, policy, key), nil
	})

	select {
	case <-ctx.Done():
		return types.OperationResult{}, false
	case res := <-ch:
		result := res.Val.(types.OperationResult)
		result.Operation = op
		return result, true
	}
}

func (c *Client) doRequest(ctx context.Context, op *types.Operation, policy types.RequestPolicy, key string) types.OperationResult {
	start := time.Now()
	endpoint := c.endpoint(op.Context)
	if c.setupErr != nil {
		return types.OperationResult{Error: &types.CombinedError{NetworkError: c.setupErr}}
	}
	if endpoint == "" {
		return types.OperationResult{Error: &types.CombinedError{NetworkError: ErrNoEndpoint}}
	}

	req, err := c.newHTTPRequest(ctx, op, policy, endpoint)
	if err != nil {
		return types.OperationResult{Error: &types.CombinedError{NetworkError: err}}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("graphql request failed",
			"operation_id", op.ID,
			"url", endpoint,
			"error", err)
		return types.OperationResult{Error: &types.CombinedError{NetworkError: err}}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}()

	c.logger.Debug("graphql request",
		"operation_id", op.ID,
		"key", op.Request.Key,
		"policy", policy.String(),
		"method", req.Method,
		"status", res.StatusCode,
		"from_cache", fromHTTPCache(res),
		"duration", time.Since(start))

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return types.OperationResult{Error: &types.CombinedError{NetworkError: err, Response: res.StatusCode}}
	}

	var decoded responseBody
	decodeErr := json.Unmarshal(body, &decoded)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		cerr := &types.CombinedError{
			NetworkError: fmt.Errorf("unexpected status %d from %s", res.StatusCode, endpoint),
			Response:     res.StatusCode,
		}
		if decodeErr == nil {
			cerr.GraphQLErrors = decoded.Errors
		}
		return types.OperationResult{Error: cerr}
	}
	if decodeErr != nil {
		return types.OperationResult{Error: &types.CombinedError{
			NetworkError: fmt.Errorf("malformed response: %w", decodeErr),
			Response:     res.StatusCode,
		}}
	}

	result := types.OperationResult{
		Data:       decoded.Data,
		Extensions: decoded.Extensions,
	}
	if len(decoded.Errors) > 0 {
		result.Error = &types.CombinedError{GraphQLErrors: decoded.Errors, Response: res.StatusCode}
	}
	if result.HasData() {
		c.cache.Store(key, result)
	}
	return result
}

func (c *Client) newHTTPRequest(ctx context.Context, op *types.Operation, policy types.RequestPolicy, endpoint string) (*http.Request, error) {
	var req *http.Request
	if c.opts.PreferGetMethod {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("query", op.Request.Query)
		if len(op.Request.Variables) > 0 {
			vars, err := json.Marshal(op.Request.Variables)
			if err != nil {
				return nil, fmt.Errorf("encoding variables: %w", err)
			}
			q.Set("variables", string(vars))
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
	} else {
		payload, err := json.Marshal(requestBody{
			Query:     op.Request.Query,
			Variables: op.Request.Variables,
		})
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	}

	req.Header.Set("Accept", "application/graphql-response+json, application/json")
	for k, v := range c.headers(op.Context) {
		req.Header.Set(k, v)
	}
	if policy == types.NetworkOnly {
		req.Header.Set("Cache-Control", "no-cache")
	}
	return req, nil
}
