package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests run against a deployed server named by STOREFRONT_URL and are
// skipped otherwise.

func liveURL(t *testing.T) string {
	t.Helper()
	base := os.Getenv("STOREFRONT_URL")
	if base == "" {
		t.Skip("STOREFRONT_URL not set")
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(base + "/health/live")
	if err != nil {
		t.Skipf("storefront at %s not reachable: %v", base, err)
	}
	resp.Body.Close()
	return base
}

func liveDo(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			out["raw"] = string(raw)
		}
	}
	return resp.StatusCode, out
}

func TestLive_Health(t *testing.T) {
	base := liveURL(t)

	status, _ := liveDo(t, http.MethodGet, base+"/health/ready", nil)
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, status)
}

func TestLive_UnknownGuestCart(t *testing.T) {
	base := liveURL(t)

	status, body := liveDo(t, http.MethodGet, base+"/api/cart?guestId="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotNil(t, body["error"])
}

func TestLive_ProtectedRoutesNeedToken(t *testing.T) {
	base := liveURL(t)

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/cart/merge", map[string]string{"guestId": uuid.NewString()}},
		{http.MethodGet, "/api/orders/my-orders", nil},
		{http.MethodGet, "/api/admin/orders", nil},
		{http.MethodPost, "/api/checkout", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			status, _ := liveDo(t, tt.method, base+tt.path, tt.body)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}
}
