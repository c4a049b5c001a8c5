package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSetsDefaultUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "rmanfetch", gotUA)
}

func TestClientAppliesConfiguredHeaders(t *testing.T) {
	var gotUA, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{
		UserAgent: "rmanfetch-test/1.0",
		Headers:   map[string]string{"Authorization": "Bearer token"},
	})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "rmanfetch-test/1.0", gotUA)
	assert.Equal(t, "Bearer token", gotAuth)
}

func TestClientIgnoresMalformedProxyURL(t *testing.T) {
	// An unparsable proxy URL is ignored rather than rejected, matching
	// the teacher's client: New never returns an error.
	client := New(Config{ProxyURL: "://not-a-url"})
	assert.NotNil(t, client)
}
