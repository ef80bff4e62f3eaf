package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugabyte/couch-continuum/src/couch"
)

// fakeSentinelServer serves {db}/_local/in-maintenance with CouchDB's
// optimistic-concurrency behavior.
type fakeSentinelServer struct {
	mu       sync.Mutex
	doc      map[string]interface{}
	rev      int
	conflict int // next N writes fail with a conflict
	server   *httptest.Server
}

func newFakeSentinelServer(t *testing.T) *fakeSentinelServer {
	f := &fakeSentinelServer{}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSentinelServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		if f.doc == nil {
			w.WriteHeader(404)
			fmt.Fprint(w, `{"error": "not_found", "reason": "missing"}`)
			return
		}
		doc := map[string]interface{}{"_id": "_local/in-maintenance", "_rev": fmt.Sprintf("0-%d", f.rev)}
		for k, v := range f.doc {
			doc[k] = v
		}
		json.NewEncoder(w).Encode(doc)
	case http.MethodPut:
		if f.conflict > 0 {
			f.conflict--
			w.WriteHeader(409)
			fmt.Fprint(w, `{"error": "conflict", "reason": "Document update conflict."}`)
			return
		}
		var doc map[string]interface{}
		json.NewDecoder(r.Body).Decode(&doc)
		delete(doc, "_rev")
		f.doc = doc
		f.rev++
		fmt.Fprintf(w, `{"ok": true, "rev": "0-%d"}`, f.rev)
	case http.MethodDelete:
		if f.conflict > 0 {
			f.conflict--
			w.WriteHeader(409)
			fmt.Fprint(w, `{"error": "conflict", "reason": "Document update conflict."}`)
			return
		}
		if f.doc == nil {
			w.WriteHeader(404)
			fmt.Fprint(w, `{"error": "not_found", "reason": "missing"}`)
			return
		}
		f.doc = nil
		fmt.Fprint(w, `{"ok": true}`)
	}
}

func (f *fakeSentinelServer) dbURL() string {
	return f.server.URL + "/alpha"
}

func newTestMarker() *Marker {
	return NewMarker(couch.NewClient(couch.Config{
		Timeout:      2 * time.Second,
		MaxRetries:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}))
}

func TestIsAvailableWhenSentinelAbsent(t *testing.T) {
	f := newFakeSentinelServer(t)
	available, err := newTestMarker().IsAvailable(context.Background(), f.dbURL())
	require.NoError(t, err)
	assert.True(t, available)
}

func TestSetUnavailableCreatesSentinel(t *testing.T) {
	f := newFakeSentinelServer(t)
	marker := newTestMarker()
	ctx := context.Background()

	require.NoError(t, marker.SetUnavailable(ctx, f.dbURL()))
	available, err := marker.IsAvailable(ctx, f.dbURL())
	require.NoError(t, err)
	assert.False(t, available)
}

func TestSetUnavailableIsIdempotent(t *testing.T) {
	f := newFakeSentinelServer(t)
	marker := newTestMarker()
	ctx := context.Background()

	require.NoError(t, marker.SetUnavailable(ctx, f.dbURL()))
	require.NoError(t, marker.SetUnavailable(ctx, f.dbURL()))
	available, err := marker.IsAvailable(ctx, f.dbURL())
	require.NoError(t, err)
	assert.False(t, available)
}

func TestSetAvailableDeletesSentinel(t *testing.T) {
	f := newFakeSentinelServer(t)
	marker := newTestMarker()
	ctx := context.Background()

	require.NoError(t, marker.SetUnavailable(ctx, f.dbURL()))
	require.NoError(t, marker.SetAvailable(ctx, f.dbURL()))
	available, err := marker.IsAvailable(ctx, f.dbURL())
	require.NoError(t, err)
	assert.True(t, available)
}

func TestSetAvailableIsIdempotent(t *testing.T) {
	f := newFakeSentinelServer(t)
	marker := newTestMarker()
	ctx := context.Background()

	// Sentinel never existed: both calls are no-op successes.
	require.NoError(t, marker.SetAvailable(ctx, f.dbURL()))
	require.NoError(t, marker.SetAvailable(ctx, f.dbURL()))
}

func TestSetUnavailableRetriesOnceOnConflict(t *testing.T) {
	f := newFakeSentinelServer(t)
	f.conflict = 1
	marker := newTestMarker()
	ctx := context.Background()

	require.NoError(t, marker.SetUnavailable(ctx, f.dbURL()))
	available, err := marker.IsAvailable(ctx, f.dbURL())
	require.NoError(t, err)
	assert.False(t, available)
}

func TestSetUnavailableGivesUpAfterSecondConflict(t *testing.T) {
	f := newFakeSentinelServer(t)
	f.conflict = 2
	err := newTestMarker().SetUnavailable(context.Background(), f.dbURL())
	require.Error(t, err)
	assert.True(t, couch.IsConflict(err))
}
