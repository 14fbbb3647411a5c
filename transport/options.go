package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pumped-fn/pumped-gql/types"
)

// Options configures a Client.
type Options struct {
	// URL is the GraphQL endpoint. An ExecutionContext URL overrides it.
	URL string
	// Headers are sent with every request, before context headers.
	Headers map[string]string
	// HTTPClient is used as the base client. Its transport is wrapped, never
	// modified in place.
	HTTPClient *http.Client
	// HTTP2 enables HTTP/2 on the base transport.
	HTTP2 bool
	// HTTPCache keeps an HTTP response cache honouring Cache-Control. It only
	// affects GET requests, see PreferGetMethod.
	HTTPCache bool
	// PreferGetMethod sends queries as GET with query string parameters.
	PreferGetMethod bool
	// Timeout bounds every HTTP request. Zero means no timeout.
	Timeout time.Duration
	// RequestPolicy is used when the execution context leaves it unset.
	RequestPolicy types.RequestPolicy
	// Cache holds results for the request policies. A new one is created when nil.
	Cache *ResultCache
	Logger *slog.Logger
}
