package healthstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwulff/glucosync/internal/access"
	"github.com/jwulff/glucosync/internal/record"
)

// testServer fakes the store's HTTP surface with scripted handlers.
func testServer(t *testing.T, handlers map[string]http.HandlerFunc) *Client {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/session", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode("session-1")
	})
	for path, h := range handlers {
		mux.HandleFunc(path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key")
}

func TestCheckAvailability(t *testing.T) {
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/availability": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "session-1", r.Header.Get("X-Session-ID"))
			_ = json.NewEncoder(w).Encode(map[string]bool{"available": true})
		},
	})

	available, err := client.CheckAvailability(context.Background())
	require.NoError(t, err)
	assert.True(t, available)
}

func TestCheckPermissions(t *testing.T) {
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/permissions": func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string][]string{"tiers": {"basic", "background"}})
		},
	})

	tiers, err := client.CheckPermissions(context.Background())
	require.NoError(t, err)
	assert.True(t, tiers.Has(access.TierBackground))
	assert.False(t, tiers.Has(access.TierHistorical))
}

func TestReauthenticatesOnExpiredSession(t *testing.T) {
	calls := 0
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/availability": func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]bool{"available": true})
		},
	})

	available, err := client.CheckAvailability(context.Background())
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, 2, calls)
}

func TestWriteRecordsPartialFailure(t *testing.T) {
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/records": func(w http.ResponseWriter, r *http.Request) {
			var wire []map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&wire))
			assert.Len(t, wire, 2)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"succeeded": 1,
				"failed":    []map[string]any{{"index": 1, "reason": "value out of range"}},
			})
		},
	})

	records := []record.GlucoseRecord{
		{Value: 104, Instant: time.Now()},
		{Value: 9999, Instant: time.Now()},
	}
	result, err := client.WriteRecords(context.Background(), records)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 9999.0, result.Failed[0].Record.Value)
	assert.Equal(t, "value out of range", result.Failed[0].Reason)
}

func TestReadRecordsWindow(t *testing.T) {
	instant := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/records": func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, r.URL.Query().Get("start"))
			assert.NotEmpty(t, r.URL.Query().Get("end"))
			_ = json.NewEncoder(w).Encode([]wireRecord{{Value: 104, Instant: instant}})
		},
	})

	records, err := client.ReadRecords(context.Background(), Window{
		Start: instant.Add(-time.Hour),
		End:   instant.Add(time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 104.0, records[0].Value)
	assert.True(t, records[0].Instant.Equal(instant))
}

func TestReadChangesPageAndDone(t *testing.T) {
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/changes": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("token") == "" {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"records":   []wireRecord{{Value: 104, Instant: time.Now().UTC()}},
					"nextToken": "t1",
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"done":        true,
				"resumeToken": "t2",
			})
		},
	})

	first, err := client.ReadChanges(context.Background(), "")
	require.NoError(t, err)
	page, ok := first.(ChangePage)
	require.True(t, ok)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, Token("t1"), page.NextToken)

	second, err := client.ReadChanges(context.Background(), page.NextToken)
	require.NoError(t, err)
	done, ok := second.(ChangesDone)
	require.True(t, ok)
	assert.Equal(t, Token("t2"), done.ResumeToken)
}

func TestReadChangesExpiredToken(t *testing.T) {
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/changes": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		},
	})

	_, err := client.ReadChanges(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestServerErrorsAreTransient(t *testing.T) {
	for _, status := range []int{http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusRequestTimeout} {
		client := testServer(t, map[string]http.HandlerFunc{
			"/v1/availability": func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			},
		})
		_, err := client.CheckAvailability(context.Background())
		assert.True(t, IsTransient(err), "status %d should be transient", status)
	}
}

func TestUnreachableStoreIsTransient(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "key")
	client.HTTPClient.Timeout = 200 * time.Millisecond

	_, err := client.CheckAvailability(context.Background())
	assert.True(t, IsTransient(err))
}

func TestPermissionDeniedIsNotTransient(t *testing.T) {
	client := testServer(t, map[string]http.HandlerFunc{
		"/v1/records": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
	})

	_, err := client.WriteRecords(context.Background(), nil)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	// a store-side rejection reads the same as a snapshot-gated one
	assert.True(t, access.IsPermissionDenied(err))
}
