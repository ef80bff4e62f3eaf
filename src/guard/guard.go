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

// Package guard detects concurrent activity against a database. Migrating
// a database that is being written to or replicated produces a silently
// inconsistent copy, so every destructive or replicating step is gated on
// this check unless the operator explicitly bypasses it.
package guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/yugabyte/couch-continuum/src/couch"
)

// InUseError reports that a database is referenced by an active task or a
// scheduled replication job.
type InUseError struct {
	Database string
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("database %q is in use by an active task or scheduled replication job", e.Database)
}

// Guard inspects cluster-wide activity lists.
type Guard struct {
	client *couch.Client
}

func NewGuard(client *couch.Client) *Guard {
	return &Guard{client: client}
}

// reference is the common shape of an active task and a scheduler job:
// the three fields that may name a database.
type reference struct {
	database string
	source   string
	target   string
}

// AssertNotInUse fails with an InUseError if dbName appears as source,
// target, or database in any active task or scheduled replication job on
// the cluster at baseURL.
func (g *Guard) AssertNotInUse(ctx context.Context, baseURL, dbName string) error {
	tasks, err := g.client.ActiveTasks(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("fetch active tasks: %w", err)
	}
	jobs, err := g.client.SchedulerJobs(ctx, baseURL)
	if err != nil {
		return fmt.Errorf("fetch scheduler jobs: %w", err)
	}

	refs := append(
		lo.Map(tasks, func(t couch.Task, _ int) reference {
			return reference{database: t.Database, source: t.Source, target: t.Target}
		}),
		lo.Map(jobs, func(j couch.SchedulerJob, _ int) reference {
			return reference{database: j.Database, source: j.Source, target: j.Target}
		})...,
	)

	inUse := lo.SomeBy(refs, func(r reference) bool {
		return referencesDatabase(r, dbName)
	})
	if inUse {
		return &InUseError{Database: dbName}
	}
	log.Debugf("database %q not referenced by any of %d tasks/jobs", dbName, len(refs))
	return nil
}

// referencesDatabase matches both bare names ("mydb", shard paths like
// "shards/00000000-.../mydb.1565...") and full replication endpoint URLs
// ("http://host:5984/mydb/").
func referencesDatabase(r reference, dbName string) bool {
	return fieldMatches(r.database, dbName) ||
		fieldMatches(r.source, dbName) ||
		fieldMatches(r.target, dbName)
}

func fieldMatches(field, dbName string) bool {
	if field == "" {
		return false
	}
	if field == dbName {
		return true
	}
	trimmed := strings.TrimSuffix(field, "/")
	if strings.HasSuffix(trimmed, "/"+dbName) {
		return true
	}
	// Shard paths embed the name as ".../dbname.<timestamp>".
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		last := trimmed[idx+1:]
		if strings.HasPrefix(last, dbName+".") {
			return true
		}
	}
	return false
}
