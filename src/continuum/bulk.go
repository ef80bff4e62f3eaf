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
package continuum

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/yugabyte/couch-continuum/src/checkpoint"
	"github.com/yugabyte/couch-continuum/src/couch"
)

// replicaPrefix marks databases created by this tool; they are never
// migration candidates themselves.
const replicaPrefix = "temp_copy_"

// EngineFactory builds the engine for one database of a bulk run.
type EngineFactory func(dbName string) (*Continuum, error)

// BulkRunner migrates every eligible database on a cluster, strictly
// sequentially, checkpointing after each completed ReplacePrimary.
// Databases are processed in lexicographic order so the checkpoint's
// ordering matches the work order; an interrupted run resumes from the
// database after the checkpointed one.
type BulkRunner struct {
	client     *couch.Client
	clusterURL string
	store      checkpoint.Store
	factory    EngineFactory
}

func NewBulkRunner(client *couch.Client, clusterURL string, store checkpoint.Store, factory EngineFactory) *BulkRunner {
	return &BulkRunner{client: client, clusterURL: clusterURL, store: store, factory: factory}
}

// Candidates lists the migratable databases: everything on the cluster
// except system databases and leftover replicas.
func (r *BulkRunner) Candidates(ctx context.Context) ([]string, error) {
	names, err := r.client.AllDatabases(ctx, r.clusterURL)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return lo.Filter(names, func(name string, _ int) bool {
		return !strings.HasPrefix(name, "_") && !strings.HasPrefix(name, replicaPrefix)
	}), nil
}

// Run migrates all remaining candidates. It returns the names of databases
// it migrated and the names of databases skipped because they were already
// marked unavailable (mid-migration by another operator; manual recovery
// required). The checkpoint only ever advances past a fully migrated
// database, and is cleared when the whole run completes.
func (r *BulkRunner) Run(ctx context.Context) (migrated, skipped []string, err error) {
	candidates, err := r.Candidates(ctx)
	if err != nil {
		return nil, nil, err
	}
	remaining, err := checkpoint.Remaining(r.store, candidates)
	if err != nil {
		return nil, nil, err
	}
	if len(remaining) < len(candidates) {
		log.Infof("resuming: %d of %d databases already migrated", len(candidates)-len(remaining), len(candidates))
	}

	for _, dbName := range remaining {
		engine, err := r.factory(dbName)
		if err != nil {
			return migrated, skipped, fmt.Errorf("configure migration of %s: %w", dbName, err)
		}

		available, err := engine.IsAvailable(ctx)
		if err != nil {
			return migrated, skipped, fmt.Errorf("check availability of %s: %w", dbName, err)
		}
		if !available {
			log.Warnf("%s is marked unavailable, skipping (needs manual recovery)", dbName)
			skipped = append(skipped, dbName)
			continue
		}

		log.Infof("migrating %s", dbName)
		if err := engine.CreateReplica(ctx); err != nil {
			return migrated, skipped, fmt.Errorf("create replica of %s: %w", dbName, err)
		}
		if err := engine.ReplacePrimary(ctx); err != nil {
			return migrated, skipped, fmt.Errorf("replace primary %s: %w", dbName, err)
		}
		if err := r.store.Set(dbName); err != nil {
			return migrated, skipped, fmt.Errorf("checkpoint %s: %w", dbName, err)
		}
		migrated = append(migrated, dbName)
	}

	if err := r.store.Clear(); err != nil {
		return migrated, skipped, fmt.Errorf("clear checkpoint: %w", err)
	}
	return migrated, skipped, nil
}
