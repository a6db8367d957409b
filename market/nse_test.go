package market

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNSE(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *NSEBackend {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)

	n, err := NewNSEBackend(s.URL, timeout)
	require.NoError(t, err)
	return n
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestNSEBackend_LastPrice(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		price string
		err   error
	}{
		{
			name:  "numeric last price",
			body:  `{"priceInfo": {"lastPrice": 2900}}`,
			price: "2900",
		},
		{
			name:  "string with thousands separators",
			body:  `{"priceInfo": {"lastPrice": "2,345.678"}}`,
			price: "2345.68",
		},
		{
			name:  "rounds half away from zero",
			body:  `{"priceInfo": {"lastPrice": 1234.565}}`,
			price: "1234.57",
		},
		{
			name: "missing priceInfo",
			body: `{"info": {"symbol": "RELIANCE"}}`,
			err:  ErrNoPrice,
		},
		{
			name: "missing lastPrice",
			body: `{"priceInfo": {"open": 2890.5}}`,
			err:  ErrNoPrice,
		},
		{
			name: "null lastPrice",
			body: `{"priceInfo": {"lastPrice": null}}`,
			err:  ErrNoPrice,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			n := newTestNSE(t, jsonHandler(test.body), time.Second)

			price, err := n.LastPrice(context.Background(), "RELIANCE")
			if test.err != nil {
				assert.True(t, errors.Is(err, test.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.price, price.String())
		})
	}
}

func TestNSEBackend_LastPrice_request(t *testing.T) {
	var got *http.Request
	n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`{"priceInfo": {"lastPrice": 1}}`))
	}, time.Second)

	_, err := n.LastPrice(context.Background(), "M&M")
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/api/quote-equity", got.URL.Path)
	assert.Equal(t, "M&M", got.URL.Query().Get("symbol"))
	for k, v := range Headers {
		assert.Equal(t, v, got.Header.Get(k), k)
	}
}

func TestNSEBackend_LastPrice_failures(t *testing.T) {
	t.Run("error status", func(t *testing.T) {
		n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}, time.Second)

		_, err := n.LastPrice(context.Background(), "RELIANCE")
		var se *StatusError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
		assert.False(t, errors.Is(err, ErrNoPrice))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, 50*time.Millisecond)
		defer close(release)

		_, err := n.LastPrice(context.Background(), "RELIANCE")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoPrice))
	})

	t.Run("malformed json", func(t *testing.T) {
		n := newTestNSE(t, jsonHandler(`<html>denied</html>`), time.Second)

		_, err := n.LastPrice(context.Background(), "RELIANCE")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoPrice))
	})

	t.Run("non numeric price", func(t *testing.T) {
		n := newTestNSE(t, jsonHandler(`{"priceInfo": {"lastPrice": "-"}}`), time.Second)

		_, err := n.LastPrice(context.Background(), "RELIANCE")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNoPrice))
	})
}

func TestNSEBackend_Warm_cookies(t *testing.T) {
	n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.SetCookie(w, &http.Cookie{Name: "nsit", Value: "abc", Path: "/"})
		case "/api/quote-equity":
			if c, err := r.Cookie("nsit"); err != nil || c.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"priceInfo": {"lastPrice": "1,000"}}`))
		}
	}, time.Second)

	_, err := n.LastPrice(context.Background(), "TCS")
	require.Error(t, err, "quote without cookies must be rejected")

	require.NoError(t, n.Warm(context.Background()))

	price, err := n.LastPrice(context.Background(), "TCS")
	require.NoError(t, err)
	assert.Equal(t, "1000", price.String())
}

func TestNSEBackend_Warm_failure(t *testing.T) {
	n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, time.Second)

	assert.Error(t, n.Warm(context.Background()))
}

func TestNSEBackend_LastPrice_encodings(t *testing.T) {
	const payload = `{"priceInfo": {"lastPrice": "3,512.40"}}`

	compress := map[string]func(*bytes.Buffer){
		"gzip": func(b *bytes.Buffer) {
			w := gzip.NewWriter(b)
			w.Write([]byte(payload))
			w.Close()
		},
		"deflate": func(b *bytes.Buffer) {
			w := zlib.NewWriter(b)
			w.Write([]byte(payload))
			w.Close()
		},
		"br": func(b *bytes.Buffer) {
			w := brotli.NewWriter(b)
			w.Write([]byte(payload))
			w.Close()
		},
	}

	for encoding, fn := range compress {
		encoding, fn := encoding, fn
		t.Run(encoding, func(t *testing.T) {
			var body bytes.Buffer
			fn(&body)

			n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				w.Write(body.Bytes())
			}, time.Second)

			price, err := n.LastPrice(context.Background(), "INFY")
			require.NoError(t, err)
			assert.Equal(t, "3512.4", price.String())
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		n := newTestNSE(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "zstd")
			w.Write([]byte(payload))
		}, time.Second)

		_, err := n.LastPrice(context.Background(), "INFY")
		assert.Error(t, err)
	})
}
