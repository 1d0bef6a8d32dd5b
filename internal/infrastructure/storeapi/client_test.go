package storeapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nits22/smart-grocery-cart/internal/domain"
)

const milkListings = `{
	"query": "milk 1l",
	"products": [
		{"id": "b-1", "name": "Amul Taaza Toned Milk", "brand": "Amul", "size": "1 l", "price": 54, "available": true},
		{"id": "b-2", "name": "Mother Dairy Full Cream Milk", "size": "1 l", "price": 68.5, "available": false}
	]
}`

func newTestClient(endpoints map[string]string) *Client {
	return NewClient(Config{
		Endpoints: endpoints,
		RateLimit: 1000,
		Burst:     100,
		Backoff:   time.Millisecond,
	})
}

func TestNewClient(t *testing.T) {
	client := NewClient(Config{Endpoints: map[string]string{"Blinkit": "https://blinkit.example.com/"}})

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, "https://blinkit.example.com", client.endpoints["Blinkit"])
	assert.NotNil(t, client.limiters["Blinkit"])
	assert.Equal(t, defaultMaxRetries, client.maxRetries)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.False(t, client.debug)
}

func TestSetDebug(t *testing.T) {
	client := newTestClient(nil)

	client.SetDebug(true)
	assert.True(t, client.debug)
	client.debugLog("test message")

	client.SetDebug(false)
	assert.False(t, client.debug)
}

func TestStores(t *testing.T) {
	client := newTestClient(map[string]string{"Zepto": "http://z", "Blinkit": "http://b"})
	assert.Equal(t, []string{"Blinkit", "Zepto"}, client.Stores())
}

func TestExponentialBackoff(t *testing.T) {
	client := NewClient(Config{Backoff: 500 * time.Millisecond})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, client.exponentialBackoff(tt.attempt))
		})
	}
}

func TestSearchProducts_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "milk 1l", r.URL.Query().Get("q"))
		assert.Equal(t, "Mumbai", r.URL.Query().Get("city"))
		assert.Equal(t, "SmartGroceryCart/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(milkListings))
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	result, err := client.SearchProducts(context.Background(), "Blinkit", "Mumbai", "milk 1l")

	require.NoError(t, err)
	assert.Equal(t, "Blinkit", result.Store)
	require.Len(t, result.Products, 2)
	assert.Equal(t, domain.Listing{ID: "b-1", Name: "Amul Taaza Toned Milk", Brand: "Amul", Size: "1 l", Price: 5400, Available: true}, result.Products[0])
	assert.Equal(t, domain.Money(6850), result.Products[1].Price)
	assert.False(t, result.Products[1].Available)
}

func TestSearchProducts_UnknownStore(t *testing.T) {
	client := newTestClient(nil)

	result, err := client.SearchProducts(context.Background(), "DMart", "Pune", "milk")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrNoEndpoint)
}

func TestSearchProducts_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Zepto": server.URL})
	result, err := client.SearchProducts(context.Background(), "Zepto", "", "caviar")

	require.NoError(t, err)
	assert.Empty(t, result.Products)
	assert.Equal(t, "caviar", result.Query)
}

func TestSearchProducts_ServerError_Retries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(milkListings))
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	result, err := client.SearchProducts(context.Background(), "Blinkit", "", "milk 1l")

	require.NoError(t, err)
	assert.Len(t, result.Products, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestSearchProducts_TooManyRequests_Retries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(milkListings))
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	_, err := client.SearchProducts(context.Background(), "Blinkit", "", "milk 1l")

	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestSearchProducts_ClientError_NoRetry(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	result, err := client.SearchProducts(context.Background(), "Blinkit", "", "milk")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrStoreAPIFailure)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestSearchProducts_AllRetriesFail(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	result, err := client.SearchProducts(context.Background(), "Blinkit", "", "milk")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrStoreAPIFailure)
	assert.Equal(t, int32(defaultMaxRetries), atomic.LoadInt32(&attempts))
}

func TestSearchProducts_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	result, err := client.SearchProducts(context.Background(), "Blinkit", "", "milk")

	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearchProducts_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(map[string]string{"Blinkit": server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result, err := client.SearchProducts(ctx, "Blinkit", "", "milk")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadLimitedBody(t *testing.T) {
	t.Run("reads within limit", func(t *testing.T) {
		body, err := readLimitedBody(strings.NewReader("short content"), 1000)
		require.NoError(t, err)
		assert.Equal(t, "short content", string(body))
	})

	t.Run("truncates beyond limit", func(t *testing.T) {
		body, err := readLimitedBody(strings.NewReader(strings.Repeat("0123456789", 100)), 100)
		require.NoError(t, err)
		assert.Len(t, body, 100)
	})
}
