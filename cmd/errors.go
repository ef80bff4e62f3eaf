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
package cmd

import (
	"errors"
	"fmt"

	"github.com/yugabyte/couch-continuum/src/continuum"
	"github.com/yugabyte/couch-continuum/src/couch"
	"github.com/yugabyte/couch-continuum/src/guard"
	"github.com/yugabyte/couch-continuum/src/verify"
)

// friendlyError translates known error kinds into operator-facing
// messages; unrecognized errors are surfaced verbatim.
func friendlyError(err error) string {
	var inUseErr *guard.InUseError
	if errors.As(err, &inUseErr) {
		return fmt.Sprintf("%s. Wait for the activity to finish or pass --allow-replications.", inUseErr.Error())
	}
	var mismatchErr *verify.MismatchError
	if errors.As(err, &mismatchErr) {
		return fmt.Sprintf("%s. Re-run create-replica to refresh the copy.", mismatchErr.Error())
	}
	var changedErr *continuum.PrimaryChangedError
	if errors.As(err, &changedErr) {
		return fmt.Sprintf("%s. Quiesce writers and re-run.", changedErr.Error())
	}
	var serverErr *couch.ServerError
	if errors.As(err, &serverErr) {
		switch serverErr.Code {
		case couch.ErrCodeUnauthorized:
			return "the cluster rejected our credentials; check the user and password in --url"
		case couch.ErrCodeNotFound:
			return fmt.Sprintf("the cluster has no such resource: %s", serverErr.URL)
		case couch.ErrCodeIllegalDatabaseName:
			return fmt.Sprintf("the cluster rejected the database name: %s", serverErr.Reason)
		}
	}
	if couch.IsTransportError(err) {
		return fmt.Sprintf("could not reach the cluster: %s", err)
	}
	return err.Error()
}
