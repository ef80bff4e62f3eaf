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

// Package checkpoint persists the name of the last database successfully
// migrated in a bulk run, making the run crash-resumable at per-database
// granularity.
package checkpoint

import (
	"sort"

	"github.com/samber/lo"
)

// Store is the pluggable persistence behind bulk migration. An absent
// checkpoint reads as the empty string, the lowest possible sort key.
type Store interface {
	Get() (string, error)
	Set(name string) error
	Clear() error
}

// Remaining filters all down to the databases sorting strictly after the
// current checkpoint, in sorted order.
func Remaining(store Store, all []string) ([]string, error) {
	current, err := store.Get()
	if err != nil {
		return nil, err
	}
	remaining := lo.Filter(all, func(name string, _ int) bool {
		return name > current
	})
	sort.Strings(remaining)
	return remaining, nil
}
