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

// Package continuum implements the migration state machine. A Continuum
// migrates one database whose q/n/placement settings are immutable after
// creation, in two phases: CreateReplica copies the primary into a
// temporary replica created with the desired settings and verifies the
// copy; ReplacePrimary destroys the primary, recreates it with the new
// settings, and copies the data back. No step is retried automatically;
// any failure aborts the remaining sequence.
package continuum

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yugabyte/couch-continuum/src/availability"
	"github.com/yugabyte/couch-continuum/src/couch"
	"github.com/yugabyte/couch-continuum/src/guard"
	"github.com/yugabyte/couch-continuum/src/replication"
	"github.com/yugabyte/couch-continuum/src/verify"
)

// DefaultSettleDelay is how long ReplacePrimary waits after recreating the
// primary before touching it again. Cluster metadata propagation after a
// database create is not a protocol guarantee; operating on the database
// too early has been observed to fail.
const DefaultSettleDelay = 5 * time.Second

// Config is the immutable per-engine configuration, supplied once at
// construction.
type Config struct {
	// Source is a bare database name or a full database URL. Required.
	Source string
	// Target is a bare name or URL for the replica. Defaults to
	// temp_copy_<source-name> on the source's cluster.
	Target string
	// ClusterURL is the admin API root used to resolve bare names.
	ClusterURL string

	// Q, N and Placement are the sharding settings the recreated primary
	// (and the replica) are created with. Zero values are omitted and the
	// cluster defaults apply.
	Q         int
	N         int
	Placement string

	// FilterTombstones excludes deleted documents from replication.
	FilterTombstones bool
	// ReplicateSecurity copies /_security along with the data.
	ReplicateSecurity bool
	// AllowReplications skips the in-use check. Only safe with
	// out-of-band assurance that nothing touches the source.
	AllowReplications bool
	// Continuous establishes a continuous replication source -> replica
	// after CreateReplica's one-shot pass.
	Continuous bool
	// Interval is the poll interval for progress and completion checks.
	Interval time.Duration
}

// PrimaryChangedError reports that the primary received writes during the
// replication window, invalidating the copy.
type PrimaryChangedError struct {
	Database  string
	SeqBefore int64
	SeqAfter  int64
}

func (e *PrimaryChangedError) Error() string {
	return fmt.Sprintf("primary %q changed during replication: update seq advanced from %d to %d",
		e.Database, e.SeqBefore, e.SeqAfter)
}

// Continuum coordinates one database's migration.
type Continuum struct {
	Source couch.DatabaseIdentity
	Target couch.DatabaseIdentity

	config   Config
	client   *couch.Client
	marker   *availability.Marker
	guard    *guard.Guard
	driver   *replication.Driver
	verifier *verify.Verifier

	// settleDelay is overridable for tests.
	settleDelay time.Duration
}

// New resolves the source and target identities and wires the engine's
// collaborators. reporter may be nil to disable progress bars.
func New(config Config, client *couch.Client, reporter replication.ProgressReporter) (*Continuum, error) {
	source, err := couch.ResolveIdentity(config.Source, config.ClusterURL)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	var target couch.DatabaseIdentity
	if config.Target != "" {
		target, err = couch.ResolveIdentity(config.Target, source.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("resolve target: %w", err)
		}
	} else {
		target = couch.ReplicaIdentity(source)
	}

	if source.URL == target.URL {
		return nil, fmt.Errorf("source and target resolve to the same database %s", source.DisplayURL())
	}

	return &Continuum{
		Source:      source,
		Target:      target,
		config:      config,
		client:      client,
		marker:      availability.NewMarker(client),
		guard:       guard.NewGuard(client),
		driver:      replication.NewDriver(client, config.Interval, reporter),
		verifier:    verify.NewVerifier(client),
		settleDelay: DefaultSettleDelay,
	}, nil
}

// CreateReplica copies the source into the target. Non-destructive and
// safe to re-run: an already existing, already matching target verifies
// clean.
func (c *Continuum) CreateReplica(ctx context.Context) error {
	if err := c.assertNotInUse(ctx); err != nil {
		return err
	}

	seqBefore, err := c.sourceUpdateSeq(ctx)
	if err != nil {
		return err
	}

	log.Infof("creating replica %s of %s", c.Target.Name, c.Source.Name)
	err = c.client.CreateDatabase(ctx, c.Target.URL, c.createOptions())
	if err != nil && !couch.IsFileExists(err) {
		return fmt.Errorf("create %s: %w", c.Target.Name, err)
	}

	err = c.driver.Replicate(ctx, c.Source, c.Target, replication.Options{
		FilterTombstones:  c.config.FilterTombstones,
		ReplicateSecurity: c.config.ReplicateSecurity,
		Continuous:        c.config.Continuous,
	})
	if err != nil {
		return err
	}

	seqAfter, err := c.sourceUpdateSeq(ctx)
	if err != nil {
		return err
	}
	if seqAfter != seqBefore {
		return &PrimaryChangedError{Database: c.Source.Name, SeqBefore: seqBefore, SeqAfter: seqAfter}
	}

	return c.verifier.Verify(ctx, c.Source, c.Target)
}

// ReplacePrimary destroys the source, recreates it with the new settings,
// and copies the replica back. The in-use and consistency checks run again
// here: arbitrary time may have passed since CreateReplica, including an
// interactive confirmation. Once the destroy has been issued there is no
// safe abort; the only paths forward are completion or manual recovery.
func (c *Continuum) ReplacePrimary(ctx context.Context) error {
	if err := c.assertNotInUse(ctx); err != nil {
		return err
	}
	if err := c.verifier.Verify(ctx, c.Source, c.Target); err != nil {
		return err
	}

	log.Infof("destroying primary %s", c.Source.Name)
	if err := c.client.DestroyDatabase(ctx, c.Source.URL); err != nil {
		return fmt.Errorf("destroy %s: %w", c.Source.Name, err)
	}

	log.Infof("recreating %s with q=%d n=%d placement=%q",
		c.Source.Name, c.config.Q, c.config.N, c.config.Placement)
	if err := c.client.CreateDatabase(ctx, c.Source.URL, c.createOptions()); err != nil {
		return fmt.Errorf("recreate %s: %w", c.Source.Name, err)
	}
	if err := c.settle(ctx); err != nil {
		return err
	}

	if err := c.marker.SetUnavailable(ctx, c.Source.URL); err != nil {
		return fmt.Errorf("mark %s unavailable: %w", c.Source.Name, err)
	}

	err := c.driver.Replicate(ctx, c.Target, c.Source, replication.Options{
		ReplicateSecurity: c.config.ReplicateSecurity,
	})
	if err != nil {
		return err
	}

	log.Infof("destroying replica %s", c.Target.Name)
	err = c.client.DestroyDatabase(ctx, c.Target.URL)
	if err != nil && !couch.IsNotFound(err) {
		return fmt.Errorf("destroy %s: %w", c.Target.Name, err)
	}

	if err := c.marker.SetAvailable(ctx, c.Source.URL); err != nil {
		return fmt.Errorf("mark %s available: %w", c.Source.Name, err)
	}

	log.Infof("primary %s replaced", c.Source.Name)
	return nil
}

// IsAvailable reports whether the source is currently marked safe to use.
func (c *Continuum) IsAvailable(ctx context.Context) (bool, error) {
	return c.marker.IsAvailable(ctx, c.Source.URL)
}

func (c *Continuum) assertNotInUse(ctx context.Context) error {
	if c.config.AllowReplications {
		log.Warnf("in-use check for %s skipped (--allow-replications)", c.Source.Name)
		return nil
	}
	return c.guard.AssertNotInUse(ctx, c.Source.BaseURL, c.Source.Name)
}

func (c *Continuum) sourceUpdateSeq(ctx context.Context) (int64, error) {
	info, err := c.client.DatabaseInfo(ctx, c.Source.URL)
	if err != nil {
		return 0, fmt.Errorf("fetch info of %s: %w", c.Source.Name, err)
	}
	return info.UpdateSeqNumber(), nil
}

func (c *Continuum) createOptions() couch.CreateOptions {
	return couch.CreateOptions{Q: c.config.Q, N: c.config.N, Placement: c.config.Placement}
}

func (c *Continuum) settle(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.settleDelay):
		return nil
	}
}
