package evidence

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheTransport(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("payload")) // nolint:errcheck
	}))
	defer server.Close()

	client := &http.Client{Transport: newCacheTransport(nil, 8, time.Minute)}

	t.Run("should serve repeated requests from the cache", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			res, err := client.Get(server.URL + "/search")
			require.NoError(t, err)
			body, err := io.ReadAll(res.Body)
			require.NoError(t, err)
			res.Body.Close() // nolint:errcheck
			assert.Equal(t, "payload", string(body))
		}
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("should never cache failures", func(t *testing.T) {
		before := hits.Load()
		for i := 0; i < 2; i++ {
			res, err := client.Get(server.URL + "/fail")
			require.NoError(t, err)
			res.Body.Close() // nolint:errcheck
			assert.Equal(t, http.StatusBadGateway, res.StatusCode)
		}
		assert.Equal(t, before+2, hits.Load())
	})

	t.Run("should key on credentials", func(t *testing.T) {
		before := hits.Load()
		for _, token := range []string{"token-a", "token-b"} {
			req, err := http.NewRequest(http.MethodGet, server.URL+"/search", nil)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token)
			res, err := client.Do(req)
			require.NoError(t, err)
			res.Body.Close() // nolint:errcheck
		}
		assert.Equal(t, before+2, hits.Load())
	})
}
