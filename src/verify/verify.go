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

// Package verify confirms that a replica is a faithful copy of its source.
// Count equality is necessary but not sufficient (it does not prove
// content equality); that is a documented limitation of the check.
package verify

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/yugabyte/couch-continuum/src/couch"
)

// MismatchError reports diverging document counts between two databases.
type MismatchError struct {
	Source      string
	Target      string
	SourceCount int64
	TargetCount int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("document count mismatch: %s has %d docs, %s has %d docs",
		e.Source, e.SourceCount, e.Target, e.TargetCount)
}

// Verifier compares document counts between two databases.
type Verifier struct {
	client *couch.Client
}

func NewVerifier(client *couch.Client) *Verifier {
	return &Verifier{client: client}
}

// Verify fails with a MismatchError if the two databases hold different
// numbers of documents.
func (v *Verifier) Verify(ctx context.Context, source, target couch.DatabaseIdentity) error {
	sourceInfo, err := v.client.DatabaseInfo(ctx, source.URL)
	if err != nil {
		return fmt.Errorf("fetch info of %s: %w", source.Name, err)
	}
	targetInfo, err := v.client.DatabaseInfo(ctx, target.URL)
	if err != nil {
		return fmt.Errorf("fetch info of %s: %w", target.Name, err)
	}
	if sourceInfo.DocCount != targetInfo.DocCount {
		return &MismatchError{
			Source:      source.Name,
			Target:      target.Name,
			SourceCount: sourceInfo.DocCount,
			TargetCount: targetInfo.DocCount,
		}
	}
	log.Infof("verified %s and %s both hold %d documents", source.Name, target.Name, sourceInfo.DocCount)
	return nil
}
