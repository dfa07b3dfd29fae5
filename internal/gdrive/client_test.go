package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// testLogger returns a debug-level logger that writes to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

// newTestClient points a Drive service at an httptest server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return New(svc, 0, testLogger(t))
}

func writeAPIError(w http.ResponseWriter, code int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"errors":[{"reason":%q,"message":%q}]}}`,
		code, message, reason, message)
}

func TestListChildren_BuildsQueryAndPaginates(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		assert.Equal(t, "/files", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "'root-1' in parents and trashed = false", q.Get("q"))
		assert.Equal(t, "1000", q.Get("pageSize"))
		assert.Equal(t, "true", q.Get("supportsAllDrives"))
		assert.Equal(t, "true", q.Get("includeItemsFromAllDrives"))

		w.Header().Set("Content-Type", "application/json")

		if q.Get("pageToken") == "" {
			fmt.Fprint(w, `{"nextPageToken":"p2","files":[
				{"id":"f1","name":"Manuals","mimeType":"application/vnd.google-apps.folder","parents":["root-1"]},
				{"id":"x1","name":"spec.pdf","mimeType":"application/pdf","modifiedTime":"2024-05-01T10:00:00.000Z","parents":["root-1"],"size":"2048"}
			]}`)

			return
		}

		assert.Equal(t, "p2", q.Get("pageToken"))
		fmt.Fprint(w, `{"files":[{"id":"y1","name":"orphan.txt","mimeType":"text/plain"}]}`)
	})

	ctx := context.Background()

	page, err := client.ListChildren(ctx, "root-1", "")
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "p2", page.NextPageToken)

	assert.True(t, page.Entries[0].IsFolder())
	assert.Equal(t, []string{"root-1"}, page.Entries[0].Parents)
	assert.False(t, page.Entries[1].IsFolder())
	assert.Equal(t, int64(2048), page.Entries[1].Size)
	assert.Equal(t, "2024-05-01T10:00:00.000Z", page.Entries[1].ModifiedTime)

	page, err = client.ListChildren(ctx, "root-1", "p2")
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Empty(t, page.NextPageToken)
	assert.Empty(t, page.Entries[0].Parents)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListChildren_ClassifiesErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		code     int
		reason   string
		sentinel error
	}{
		{"not found", http.StatusNotFound, "notFound", ErrNotFound},
		{"rate limited 403", http.StatusForbidden, "userRateLimitExceeded", ErrThrottled},
		{"forbidden", http.StatusForbidden, "insufficientFilePermissions", ErrForbidden},
		{"unauthorized", http.StatusUnauthorized, "authError", ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				writeAPIError(w, tt.code, tt.reason, "boom")
			})

			_, err := client.ListChildren(context.Background(), "root-1", "")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.code, pe.StatusCode)
			assert.Equal(t, tt.reason, pe.Reason)
			assert.Contains(t, pe.Error(), "listing root-1")
		})
	}
}

func TestDownload_StreamsBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/x1", r.URL.Path)
		assert.Equal(t, "media", r.URL.Query().Get("alt"))

		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.7 body")
	})

	body, contentType, err := client.Download(context.Background(), "x1")
	require.NoError(t, err)

	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 body", string(data))
	assert.Equal(t, "application/pdf", contentType)
}

func TestDownload_NotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusNotFound, "notFound", "File not found: x9")
	})

	body, _, err := client.Download(context.Background(), "x9")
	assert.Nil(t, body)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrBadRequest, classifyStatus(http.StatusBadRequest, ""))
	assert.Equal(t, ErrThrottled, classifyStatus(http.StatusTooManyRequests, ""))
	assert.Equal(t, ErrThrottled, classifyStatus(http.StatusForbidden, "rateLimitExceeded"))
	assert.Equal(t, ErrServerError, classifyStatus(http.StatusBadGateway, ""))
	assert.NoError(t, classifyStatus(http.StatusConflict, ""))
}

func TestWrapError_NonAPIError(t *testing.T) {
	t.Parallel()

	err := wrapError("listing r", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var pe *ProviderError
	assert.False(t, errors.As(err, &pe))
}

func TestChildrenQuery_EscapesQuotes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `'a\'b' in parents and trashed = false`, childrenQuery("a'b"))
}

func TestLoadCredentials(t *testing.T) {
	t.Parallel()

	data, err := LoadCredentials(`{"type":"service_account"}`, "/nonexistent")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(data))

	_, err = LoadCredentials("", "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = LoadCredentials("  ", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNoCredentials)

	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"k":1}`), 0o600))

	data, err = LoadCredentials("", path)
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, string(data))
}

func TestNewFromServiceAccount_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewFromServiceAccount(context.Background(), []byte("not json"), 0, testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing service account credentials")
}
