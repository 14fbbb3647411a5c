package gql

import (
	"io"
	"log/slog"
	"sync"

	"github.com/pumped-fn/pumped-gql/transport"
	"github.com/pumped-fn/pumped-gql/types"
)

// DefaultURL is the endpoint of the client installed at startup.
const DefaultURL = "/graphql"

var (
	clientMu sync.RWMutex
	client   types.Client = transport.New(transport.Options{URL: DefaultURL})
)

// SetClient replaces the process-wide client with a transport built from opts.
// Queries created earlier keep the client they were created with.
func SetClient(opts transport.Options) *transport.Client {
	c := transport.New(opts)
	UseClient(c)
	return c
}

// UseClient installs c as the process-wide client.
func UseClient(c types.Client) {
	clientMu.Lock()
	defer clientMu.Unlock()
	client = c
}

// GetClient returns the process-wide client.
func GetClient() types.Client {
	clientMu.RLock()
	defer clientMu.RUnlock()
	return client
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
