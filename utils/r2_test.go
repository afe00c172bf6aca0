package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-ledger/config"
)

func TestPutJSONUploadsObject(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotBody     []byte
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotPath = r.URL.Path
		gotBody = body
		contentType = r.Header.Get("Content-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := newR2Client(context.Background(), config.R2Config{
		AccessKeyID:     "key",
		AccessKeySecret: "secret",
		Bucket:          "exports",
		PublicBaseURL:   "https://cdn.example.com/",
	}, srv.URL)
	require.NoError(t, err)

	url, err := client.PutJSON(context.Background(), "reports/pools/1-task/x.json", []byte(`{"ok":true}`))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/reports/pools/1-task/x.json", url)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/exports/reports/pools/1-task/x.json", gotPath)
	assert.Equal(t, "application/json", contentType)
	assert.Contains(t, string(gotBody), `{"ok":true}`)
}

func TestPutJSONReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := newR2Client(context.Background(), config.R2Config{
		AccessKeyID: "key", AccessKeySecret: "secret", Bucket: "exports",
	}, srv.URL)
	require.NoError(t, err)

	_, err = client.PutJSON(context.Background(), "k.json", []byte(`{}`))
	assert.Error(t, err)
}

func TestPublicURLDefaultsToBucketEndpoint(t *testing.T) {
	client, err := NewR2Client(context.Background(), config.R2Config{
		AccountID: "acct", AccessKeyID: "key", AccessKeySecret: "secret", Bucket: "exports",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://acct.r2.cloudflarestorage.com/exports/a/b.json", client.PublicURL("/a/b.json"))
}
