package continuum

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yugabyte/couch-continuum/src/couch"
)

// fakeDB is one database on the fake cluster.
type fakeDB struct {
	docCount  int64
	updateSeq int64
	q         int
	n         int
	placement string

	sentinelExists bool
	sentinelDown   bool
	sentinelRev    int

	security couch.SecurityObject
}

// fakeCluster fakes the subset of the CouchDB admin API the engine uses.
type fakeCluster struct {
	mu    sync.Mutex
	dbs   map[string]*fakeDB
	tasks []couch.Task
	jobs  []couch.SchedulerJob

	// onReplicate runs while a _replicate request is being served, before
	// documents are copied. Used to simulate concurrent writers.
	onReplicate func(f *fakeCluster)

	replicateCalls []couch.ReplicateRequest
	server         *httptest.Server
}

func newFakeCluster(t *testing.T) *fakeCluster {
	f := &fakeCluster{dbs: make(map[string]*fakeDB)}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeCluster) baseURL() string {
	return f.server.URL
}

func (f *fakeCluster) addDB(name string, docCount, updateSeq int64) *fakeDB {
	f.mu.Lock()
	defer f.mu.Unlock()
	db := &fakeDB{docCount: docCount, updateSeq: updateSeq}
	f.dbs[name] = db
	return db
}

func (f *fakeCluster) db(name string) *fakeDB {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dbs[name]
}

func notFound(w http.ResponseWriter) {
	w.WriteHeader(404)
	fmt.Fprint(w, `{"error": "not_found", "reason": "Database does not exist."}`)
}

func (f *fakeCluster) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(r.URL.Path, "/")
	switch path {
	case "_all_dbs":
		f.mu.Lock()
		names := make([]string, 0, len(f.dbs))
		for name := range f.dbs {
			names = append(names, name)
		}
		f.mu.Unlock()
		json.NewEncoder(w).Encode(names)
		return
	case "_active_tasks":
		f.mu.Lock()
		tasks := f.tasks
		f.mu.Unlock()
		if tasks == nil {
			tasks = []couch.Task{}
		}
		json.NewEncoder(w).Encode(tasks)
		return
	case "_scheduler/jobs":
		f.mu.Lock()
		jobs := f.jobs
		f.mu.Unlock()
		if jobs == nil {
			jobs = []couch.SchedulerJob{}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"jobs": jobs})
		return
	case "_replicate":
		f.handleReplicate(w, r)
		return
	}

	segments := strings.Split(path, "/")
	dbName := segments[0]
	rest := strings.Join(segments[1:], "/")
	switch rest {
	case "":
		f.handleDatabase(w, r, dbName)
	case "_local/in-maintenance":
		f.handleSentinel(w, r, dbName)
	case "_security":
		f.handleSecurity(w, r, dbName)
	default:
		notFound(w)
	}
}

func (f *fakeCluster) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var req couch.ReplicateRequest
	json.NewDecoder(r.Body).Decode(&req)

	if hook := f.onReplicate; hook != nil {
		hook(f)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.replicateCalls = append(f.replicateCalls, req)

	sourceName := lastSegment(req.Source)
	targetName := lastSegment(req.Target)
	source, ok := f.dbs[sourceName]
	if !ok {
		notFound(w)
		return
	}
	target, ok := f.dbs[targetName]
	if !ok {
		notFound(w)
		return
	}
	if !req.Continuous {
		target.docCount = source.docCount
		target.updateSeq += source.docCount
	}
	fmt.Fprint(w, `{"ok": true}`)
}

func (f *fakeCluster) handleDatabase(w http.ResponseWriter, r *http.Request, dbName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	db, exists := f.dbs[dbName]
	switch r.Method {
	case http.MethodGet:
		if !exists {
			notFound(w)
			return
		}
		fmt.Fprintf(w, `{"db_name": %q, "doc_count": %d, "update_seq": "%d-g1AAAA"}`,
			dbName, db.docCount, db.updateSeq)
	case http.MethodPut:
		if exists {
			w.WriteHeader(412)
			fmt.Fprint(w, `{"error": "file_exists", "reason": "The database could not be created, the file already exists."}`)
			return
		}
		newDB := &fakeDB{}
		query := r.URL.Query()
		fmt.Sscanf(query.Get("q"), "%d", &newDB.q)
		fmt.Sscanf(query.Get("n"), "%d", &newDB.n)
		newDB.placement = query.Get("placement")
		f.dbs[dbName] = newDB
		w.WriteHeader(201)
		fmt.Fprint(w, `{"ok": true}`)
	case http.MethodDelete:
		if !exists {
			notFound(w)
			return
		}
		delete(f.dbs, dbName)
		fmt.Fprint(w, `{"ok": true}`)
	}
}

func (f *fakeCluster) handleSentinel(w http.ResponseWriter, r *http.Request, dbName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	db, exists := f.dbs[dbName]
	if !exists {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !db.sentinelExists {
			notFound(w)
			return
		}
		fmt.Fprintf(w, `{"_id": "_local/in-maintenance", "_rev": "0-%d", "down": %t}`,
			db.sentinelRev, db.sentinelDown)
	case http.MethodPut:
		var doc struct {
			Down bool `json:"down"`
		}
		json.NewDecoder(r.Body).Decode(&doc)
		db.sentinelExists = true
		db.sentinelDown = doc.Down
		db.sentinelRev++
		fmt.Fprintf(w, `{"ok": true, "rev": "0-%d"}`, db.sentinelRev)
	case http.MethodDelete:
		if !db.sentinelExists {
			notFound(w)
			return
		}
		db.sentinelExists = false
		fmt.Fprint(w, `{"ok": true}`)
	}
}

func (f *fakeCluster) handleSecurity(w http.ResponseWriter, r *http.Request, dbName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	db, exists := f.dbs[dbName]
	if !exists {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if db.security == nil {
			fmt.Fprint(w, `{}`)
			return
		}
		json.NewEncoder(w).Encode(db.security)
	case http.MethodPut:
		var sec couch.SecurityObject
		json.NewDecoder(r.Body).Decode(&sec)
		db.security = sec
		fmt.Fprint(w, `{"ok": true}`)
	}
}

func lastSegment(rawURL string) string {
	trimmed := strings.TrimSuffix(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

func newTestEngine(t *testing.T, f *fakeCluster, config Config) *Continuum {
	config.ClusterURL = f.baseURL()
	if config.Interval == 0 {
		config.Interval = 5 * time.Millisecond
	}
	client := couch.NewClient(couch.Config{
		Timeout:      2 * time.Second,
		MaxRetries:   1,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 2 * time.Millisecond,
	})
	engine, err := New(config, client, nil)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	engine.settleDelay = time.Millisecond
	return engine
}
