package transport

import (
	"fmt"
	"net/http"

	"github.com/gregjones/httpcache"
	"golang.org/x/net/http2"
)

// buildHTTPClient derives the HTTP client used by a Client from opts.
func buildHTTPClient(opts Options) (*http.Client, error) {
	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{}
	}

	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	if opts.HTTP2 {
		t, ok := rt.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("http2 requires an *http.Transport, got %T", rt)
		}
		t = t.Clone()
		if err := http2.ConfigureTransport(t); err != nil {
			return nil, fmt.Errorf("failed to enable http2: %w", err)
		}
		rt = t
	}

	if opts.HTTPCache {
		rt = &httpcache.Transport{
			Cache:               httpcache.NewMemoryCache(),
			MarkCachedResponses: true,
			Transport:           rt,
		}
	}

	client := *base
	client.Transport = rt
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	return &client, nil
}

func fromHTTPCache(res *http.Response) bool {
	return res.Header.Get(httpcache.XFromCache) != ""
}
