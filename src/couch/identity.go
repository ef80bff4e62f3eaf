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
	"fmt"
	"net/url"
	"strings"
)

// DatabaseIdentity is a fully resolved database endpoint. Identities are
// resolved once, at engine construction, and never re-parsed.
type DatabaseIdentity struct {
	// Name is the bare database name (last path segment).
	Name string
	// BaseURL is the cluster root, without trailing slash. May carry
	// userinfo credentials.
	BaseURL string
	// URL is BaseURL joined with the escaped Name.
	URL string
}

func (id DatabaseIdentity) String() string {
	return id.Name
}

// DisplayURL is URL with any userinfo credentials removed, safe for logs
// and console output.
func (id DatabaseIdentity) DisplayURL() string {
	parsed, err := url.Parse(id.URL)
	if err != nil {
		return id.URL
	}
	parsed.User = nil
	return parsed.String()
}

// ResolveIdentity turns a bare database name or a full database URL into a
// DatabaseIdentity. A bare name is joined to clusterURL; a full URL stands
// on its own (remote migration).
func ResolveIdentity(nameOrURL, clusterURL string) (DatabaseIdentity, error) {
	if nameOrURL == "" {
		return DatabaseIdentity{}, fmt.Errorf("no database name or URL given")
	}

	if strings.Contains(nameOrURL, "://") {
		parsed, err := url.Parse(nameOrURL)
		if err != nil {
			return DatabaseIdentity{}, fmt.Errorf("parse database URL %q: %w", nameOrURL, err)
		}
		trimmedPath := strings.TrimSuffix(parsed.Path, "/")
		idx := strings.LastIndex(trimmedPath, "/")
		if idx < 0 || trimmedPath[idx+1:] == "" {
			return DatabaseIdentity{}, fmt.Errorf("database URL %q has no database path segment", nameOrURL)
		}
		name, err := url.PathUnescape(trimmedPath[idx+1:])
		if err != nil {
			return DatabaseIdentity{}, fmt.Errorf("unescape database name in %q: %w", nameOrURL, err)
		}
		baseParsed := *parsed
		baseParsed.Path = trimmedPath[:idx]
		baseParsed.RawQuery = ""
		baseParsed.Fragment = ""
		base := strings.TrimSuffix(baseParsed.String(), "/")
		return DatabaseIdentity{
			Name:    name,
			BaseURL: base,
			URL:     base + "/" + url.PathEscape(name),
		}, nil
	}

	if clusterURL == "" {
		return DatabaseIdentity{}, fmt.Errorf("bare database name %q requires a cluster URL", nameOrURL)
	}
	base := strings.TrimSuffix(clusterURL, "/")
	return DatabaseIdentity{
		Name:    nameOrURL,
		BaseURL: base,
		URL:     base + "/" + url.PathEscape(nameOrURL),
	}, nil
}

// ReplicaIdentity derives the default replica identity for a source:
// temp_copy_<name> on the same cluster.
func ReplicaIdentity(source DatabaseIdentity) DatabaseIdentity {
	name := "temp_copy_" + source.Name
	return DatabaseIdentity{
		Name:    name,
		BaseURL: source.BaseURL,
		URL:     source.BaseURL + "/" + url.PathEscape(name),
	}
}
