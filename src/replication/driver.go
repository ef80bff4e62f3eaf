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

// Package replication drives one-shot (and optionally continuous)
// replication between two databases through the cluster's _replicate
// endpoint, and polls the active-task list for actual completion.
// Replication is asynchronous on the server, so the initiating call's
// return is not trusted as a completion signal.
package replication

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/yugabyte/couch-continuum/src/couch"
)

// TombstoneSelector excludes deleted documents from replication.
var TombstoneSelector = map[string]interface{}{
	"_deleted": map[string]interface{}{"$exists": false},
}

// Options control a single Replicate call.
type Options struct {
	// FilterTombstones excludes deleted documents via a selector.
	FilterTombstones bool
	// ReplicateSecurity copies the /_security object after data
	// replication completes.
	ReplicateSecurity bool
	// Continuous establishes a standing continuous replication after the
	// one-shot pass.
	Continuous bool
}

// Driver replicates between two databases and reports progress.
type Driver struct {
	client   *couch.Client
	interval time.Duration
	reporter ProgressReporter
}

// NewDriver builds a Driver polling at the given interval. reporter may be
// nil to disable progress reporting.
func NewDriver(client *couch.Client, interval time.Duration, reporter ProgressReporter) *Driver {
	if interval <= 0 {
		interval = time.Second
	}
	if reporter == nil {
		reporter = noopReporter{}
	}
	return &Driver{client: client, interval: interval, reporter: reporter}
}

// Replicate copies source into target and blocks until the server-side job
// has drained. Partial replication is left in place on failure; the
// caller's verification step is the safety net.
func (d *Driver) Replicate(ctx context.Context, source, target couch.DatabaseIdentity, opts Options) error {
	sourceInfo, err := d.client.DatabaseInfo(ctx, source.URL)
	if err != nil {
		return fmt.Errorf("fetch info of %s: %w", source.Name, err)
	}
	if sourceInfo.DocCount == 0 {
		log.Infof("%s holds no documents, nothing to replicate", source.Name)
		return nil
	}

	req := couch.ReplicateRequest{Source: source.URL, Target: target.URL}
	if opts.FilterTombstones {
		req.Selector = TombstoneSelector
	}

	log.Infof("replicating %s -> %s (%d documents)", source.Name, target.Name, sourceInfo.DocCount)

	// The progress poller is observational only; it never gates
	// completion. It must be stopped on every exit path.
	stopProgress := d.startProgressPoller(source, target, sourceInfo.DocCount)
	err = func() error {
		if err := d.client.Replicate(ctx, source.BaseURL, req); err != nil {
			return fmt.Errorf("start replication %s -> %s: %w", source.Name, target.Name, err)
		}
		if err := d.awaitCompletion(ctx, source, target); err != nil {
			return err
		}
		return nil
	}()
	stopProgress()
	if err != nil {
		return err
	}

	if opts.ReplicateSecurity {
		if err := d.copySecurity(ctx, source, target); err != nil {
			return err
		}
	}

	if opts.Continuous {
		contReq := couch.ReplicateRequest{Source: source.URL, Target: target.URL, Continuous: true}
		if opts.FilterTombstones {
			contReq.Selector = TombstoneSelector
		}
		if err := d.client.Replicate(ctx, source.BaseURL, contReq); err != nil {
			return fmt.Errorf("start continuous replication %s -> %s: %w", source.Name, target.Name, err)
		}
		log.Infof("continuous replication established %s -> %s", source.Name, target.Name)
	}

	return nil
}

// startProgressPoller ticks the reporter with the target's document count
// until the returned stop function is called.
func (d *Driver) startProgressPoller(source, target couch.DatabaseIdentity, total int64) func() {
	bar := d.reporter.StartBar(source.Name+" -> "+target.Name, total)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), d.interval)
				info, err := d.client.DatabaseInfo(ctx, target.URL)
				cancel()
				if err != nil {
					// Target may not exist yet; keep ticking.
					log.Debugf("progress poll of %s: %v", target.Name, err)
					continue
				}
				bar.SetCurrent(info.DocCount)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			bar.Finish()
		})
	}
}

// awaitCompletion polls the active-task list until no replication task for
// this exact source->target pair is still behind.
func (d *Driver) awaitCompletion(ctx context.Context, source, target couch.DatabaseIdentity) error {
	for {
		tasks, err := d.client.ActiveTasks(ctx, source.BaseURL)
		if err != nil {
			return fmt.Errorf("poll active tasks: %w", err)
		}
		pending := lo.Filter(tasks, func(t couch.Task, _ int) bool {
			return matchesPair(t, source, target) && t.MissingRevisionsFound > t.DocsWritten
		})
		if len(pending) == 0 {
			log.Infof("replication %s -> %s complete", source.Name, target.Name)
			return nil
		}
		log.Debugf("replication %s -> %s still behind (%d tasks pending)", source.Name, target.Name, len(pending))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.interval):
		}
	}
}

func (d *Driver) copySecurity(ctx context.Context, source, target couch.DatabaseIdentity) error {
	sec, err := d.client.GetSecurity(ctx, source.URL)
	if err != nil {
		return fmt.Errorf("fetch security of %s: %w", source.Name, err)
	}
	if err := d.client.PutSecurity(ctx, target.URL, sec); err != nil {
		return fmt.Errorf("write security of %s: %w", target.Name, err)
	}
	log.Infof("copied _security %s -> %s", source.Name, target.Name)
	return nil
}

// matchesPair reports whether an active task describes a replication from
// source to target. Task endpoint fields are URLs, usually with a trailing
// slash and sometimes with embedded credentials.
func matchesPair(t couch.Task, source, target couch.DatabaseIdentity) bool {
	if t.Type != "" && t.Type != "replication" {
		return false
	}
	return endpointNames(t.Source, source.Name) && endpointNames(t.Target, target.Name)
}

func endpointNames(field, dbName string) bool {
	trimmed := strings.TrimSuffix(field, "/")
	return trimmed == dbName || strings.HasSuffix(trimmed, "/"+dbName)
}
