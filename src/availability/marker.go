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

// Package availability reads and writes the maintenance sentinel document
// that tells downstream consumers whether a database is safe to use.
package availability

import (
	"context"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/yugabyte/couch-continuum/src/couch"
)

// SentinelPath is the well-known local document bracketing the destructive
// recreation window.
const SentinelPath = "_local/in-maintenance"

type sentinelDoc struct {
	ID   string `json:"_id,omitempty"`
	Rev  string `json:"_rev,omitempty"`
	Down bool   `json:"down"`
}

// Marker manipulates the sentinel under a database. All operations are
// idempotent: concurrent callers may create or delete the sentinel
// independently.
type Marker struct {
	client *couch.Client
}

func NewMarker(client *couch.Client) *Marker {
	return &Marker{client: client}
}

func sentinelURL(dbURL string) string {
	return strings.TrimSuffix(dbURL, "/") + "/" + SentinelPath
}

// IsAvailable reports whether the database is safe to use. A missing
// sentinel means available.
func (m *Marker) IsAvailable(ctx context.Context, dbURL string) (bool, error) {
	var doc sentinelDoc
	err := m.client.Get(ctx, sentinelURL(dbURL), nil, &doc)
	if err != nil {
		if couch.IsNotFound(err) {
			return true, nil
		}
		return false, err
	}
	return !doc.Down, nil
}

// SetUnavailable ensures the sentinel exists with down=true. An existing
// sentinel is updated in place using its current revision.
func (m *Marker) SetUnavailable(ctx context.Context, dbURL string) error {
	err := m.writeDown(ctx, dbURL)
	if couch.IsConflict(err) {
		// Lost a race with a concurrent writer; re-fetch the revision and
		// retry once.
		log.Warnf("conflict writing sentinel for %s, retrying once", dbURL)
		err = m.writeDown(ctx, dbURL)
	}
	return err
}

func (m *Marker) writeDown(ctx context.Context, dbURL string) error {
	var current sentinelDoc
	err := m.client.Get(ctx, sentinelURL(dbURL), nil, &current)
	if err != nil && !couch.IsNotFound(err) {
		return err
	}
	doc := sentinelDoc{Rev: current.Rev, Down: true}
	return m.client.Put(ctx, sentinelURL(dbURL), nil, doc, nil)
}

// SetAvailable ensures the sentinel is absent. A missing sentinel is a
// no-op success.
func (m *Marker) SetAvailable(ctx context.Context, dbURL string) error {
	err := m.deleteSentinel(ctx, dbURL)
	if couch.IsConflict(err) {
		log.Warnf("conflict deleting sentinel for %s, retrying once", dbURL)
		err = m.deleteSentinel(ctx, dbURL)
	}
	return err
}

func (m *Marker) deleteSentinel(ctx context.Context, dbURL string) error {
	var current sentinelDoc
	err := m.client.Get(ctx, sentinelURL(dbURL), nil, &current)
	if err != nil {
		if couch.IsNotFound(err) {
			return nil
		}
		return err
	}
	query := url.Values{}
	query.Set("rev", current.Rev)
	err = m.client.Delete(ctx, sentinelURL(dbURL), query, nil)
	if couch.IsNotFound(err) {
		return nil
	}
	return err
}
