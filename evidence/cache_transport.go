package evidence

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheTransport memoizes successful GET responses from the search source.
// Dependent searches repeat the same product queries across cycles, and the
// search quota is the scarcest resource in the pipeline.
type cacheTransport struct {
	cache *expirable.LRU[string, []byte]
	next  http.RoundTripper
}

func newCacheTransport(next http.RoundTripper, cacheSize int, expiration time.Duration) *cacheTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &cacheTransport{
		cache: expirable.NewLRU[string, []byte](cacheSize, nil, expiration),
		next:  next,
	}
}

func (c *cacheTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.next.RoundTrip(req)
	}

	key := cacheKey(req)
	if val, ok := c.cache.Get(key); ok {
		return responseFromBytes(val)
	}

	resp, err := c.next.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	// only cache successful responses, rate limit answers must stay fresh
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	v, err := httputil.DumpResponse(resp, true)
	if err != nil {
		slog.Error("could not dump search response for caching", "err", err)
		return resp, nil
	}
	c.cache.Add(key, v)

	return responseFromBytes(v)
}

func responseFromBytes(v []byte) (*http.Response, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(v)), nil)
	if err != nil {
		return nil, fmt.Errorf("could not read cached response: %w", err)
	}
	return resp, nil
}

// cacheKey mixes the credentials into the key so a token rotation never
// serves responses across identities.
func cacheKey(req *http.Request) string {
	key := req.URL.String()
	if auth := req.Header.Get("Authorization"); auth != "" {
		h := sha256.New()
		h.Write([]byte(key))
		h.Write([]byte(auth))
		return fmt.Sprintf("%x", h.Sum(nil))
	}
	return key
}
