package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yugabyte/couch-continuum/src/couch"
)

func newVerifyServer(t *testing.T, counts map[string]int64) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[1:]
		count, ok := counts[name]
		if !ok {
			w.WriteHeader(404)
			fmt.Fprint(w, `{"error": "not_found", "reason": "Database does not exist."}`)
			return
		}
		fmt.Fprintf(w, `{"db_name": %q, "doc_count": %d, "update_seq": "1-a"}`, name, count)
	}))
	t.Cleanup(server.Close)
	return server
}

func identities(t *testing.T, baseURL string) (couch.DatabaseIdentity, couch.DatabaseIdentity) {
	source, err := couch.ResolveIdentity("alpha", baseURL)
	require.NoError(t, err)
	target, err := couch.ResolveIdentity("temp_copy_alpha", baseURL)
	require.NoError(t, err)
	return source, target
}

func newTestVerifier() *Verifier {
	return NewVerifier(couch.NewClient(couch.Config{
		Timeout:      2 * time.Second,
		MaxRetries:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	}))
}

func TestVerifyMatchingCounts(t *testing.T) {
	server := newVerifyServer(t, map[string]int64{"alpha": 5, "temp_copy_alpha": 5})
	source, target := identities(t, server.URL)
	assert.NoError(t, newTestVerifier().Verify(context.Background(), source, target))
}

func TestVerifyMismatchedCounts(t *testing.T) {
	server := newVerifyServer(t, map[string]int64{"alpha": 5, "temp_copy_alpha": 3})
	source, target := identities(t, server.URL)
	err := newTestVerifier().Verify(context.Background(), source, target)
	require.Error(t, err)
	var mismatchErr *MismatchError
	require.ErrorAs(t, err, &mismatchErr)
	assert.Equal(t, int64(5), mismatchErr.SourceCount)
	assert.Equal(t, int64(3), mismatchErr.TargetCount)
}

func TestVerifyMissingTargetPropagates(t *testing.T) {
	server := newVerifyServer(t, map[string]int64{"alpha": 5})
	source, target := identities(t, server.URL)
	err := newTestVerifier().Verify(context.Background(), source, target)
	assert.True(t, couch.IsNotFound(err))
}
