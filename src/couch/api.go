/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package couch

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// DatabaseInfo is the response of GET {base}/{db}.
type DatabaseInfo struct {
	DBName      string `json:"db_name"`
	DocCount    int64  `json:"doc_count"`
	DocDelCount int64  `json:"doc_del_count"`
	UpdateSeq   string `json:"update_seq"`
}

// UpdateSeqNumber returns the ordered integer prefix of the update_seq
// string ("123-g1AAAA..." -> 123). The opaque suffix is not comparable.
func (info *DatabaseInfo) UpdateSeqNumber() int64 {
	seq := info.UpdateSeq
	if idx := strings.Index(seq, "-"); idx >= 0 {
		seq = seq[:idx]
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// CreateOptions are the cluster sharding parameters fixed at database
// creation time.
type CreateOptions struct {
	Q         int
	N         int
	Placement string
}

// Task is one entry of GET {base}/_active_tasks.
type Task struct {
	Type                  string `json:"type"`
	Database              string `json:"database"`
	Source                string `json:"source"`
	Target                string `json:"target"`
	DocsWritten           int64  `json:"docs_written"`
	MissingRevisionsFound int64  `json:"missing_revisions_found"`
}

// SchedulerJob is one entry of GET {base}/_scheduler/jobs.
type SchedulerJob struct {
	ID       string `json:"id"`
	Database string `json:"database"`
	Source   string `json:"source"`
	Target   string `json:"target"`
}

type schedulerJobsResponse struct {
	Jobs []SchedulerJob `json:"jobs"`
}

// ReplicateRequest is the body of POST {base}/_replicate.
type ReplicateRequest struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Continuous bool                   `json:"continuous,omitempty"`
	Selector   map[string]interface{} `json:"selector,omitempty"`
}

// SecurityObject is the body of {db}/_security. Kept opaque; it is copied
// verbatim between databases.
type SecurityObject map[string]interface{}

// DatabaseInfo fetches document counts and the update sequence of a database.
func (c *Client) DatabaseInfo(ctx context.Context, dbURL string) (*DatabaseInfo, error) {
	var info DatabaseInfo
	if err := c.Get(ctx, dbURL, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CreateDatabase issues PUT {db} with the desired sharding parameters.
// Callers decide whether file_exists is tolerable.
func (c *Client) CreateDatabase(ctx context.Context, dbURL string, opts CreateOptions) error {
	query := url.Values{}
	if opts.Q > 0 {
		query.Set("q", strconv.Itoa(opts.Q))
	}
	if opts.N > 0 {
		query.Set("n", strconv.Itoa(opts.N))
	}
	if opts.Placement != "" {
		query.Set("placement", opts.Placement)
	}
	return c.Put(ctx, dbURL, query, nil, nil)
}

// DestroyDatabase issues DELETE {db}.
func (c *Client) DestroyDatabase(ctx context.Context, dbURL string) error {
	return c.Delete(ctx, dbURL, nil, nil)
}

// AllDatabases lists every database on the cluster.
func (c *Client) AllDatabases(ctx context.Context, baseURL string) ([]string, error) {
	var names []string
	if err := c.Get(ctx, joinURL(baseURL, "_all_dbs"), nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// ActiveTasks lists the cluster's currently running tasks.
func (c *Client) ActiveTasks(ctx context.Context, baseURL string) ([]Task, error) {
	var tasks []Task
	if err := c.Get(ctx, joinURL(baseURL, "_active_tasks"), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// SchedulerJobs lists the cluster's scheduled replication jobs.
func (c *Client) SchedulerJobs(ctx context.Context, baseURL string) ([]SchedulerJob, error) {
	var resp schedulerJobsResponse
	if err := c.Get(ctx, joinURL(baseURL, "_scheduler/jobs"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// Replicate starts a replication job via POST {base}/_replicate.
func (c *Client) Replicate(ctx context.Context, baseURL string, req ReplicateRequest) error {
	return c.Post(ctx, joinURL(baseURL, "_replicate"), req, nil)
}

// GetSecurity fetches {db}/_security.
func (c *Client) GetSecurity(ctx context.Context, dbURL string) (SecurityObject, error) {
	var sec SecurityObject
	if err := c.Get(ctx, joinURL(dbURL, "_security"), nil, &sec); err != nil {
		return nil, err
	}
	return sec, nil
}

// PutSecurity writes {db}/_security.
func (c *Client) PutSecurity(ctx context.Context, dbURL string, sec SecurityObject) error {
	return c.Put(ctx, joinURL(dbURL, "_security"), nil, sec, nil)
}

func joinURL(base string, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
