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
	"errors"
	"fmt"
)

// Error codes reported by the CouchDB admin API in the "error" field of
// error-shaped response bodies. Higher layers branch on these to decide
// control flow, so they are decoded exactly once, at the transport boundary.
const (
	ErrCodeNotFound            = "not_found"
	ErrCodeUnauthorized        = "unauthorized"
	ErrCodeFileExists          = "file_exists"
	ErrCodeIllegalDatabaseName = "illegal_database_name"
	ErrCodeConflict            = "conflict"
)

// ServerError is a non-success response from the cluster: either a non-2xx
// status, or a 2xx body carrying an explicit "error" marker.
type ServerError struct {
	Method     string
	URL        string
	StatusCode int
	Code       string
	Reason     string
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s %s: server returned %q (status %d): %s",
		e.Method, e.URL, e.Code, e.StatusCode, e.Reason)
}

// TransportError is a request that never produced a server response:
// DNS failure, connection refused, timeout.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: request failed: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsServerError reports whether err is a ServerError carrying the given code.
func IsServerError(err error, code string) bool {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Code == code
	}
	return false
}

func IsNotFound(err error) bool     { return IsServerError(err, ErrCodeNotFound) }
func IsUnauthorized(err error) bool { return IsServerError(err, ErrCodeUnauthorized) }
func IsFileExists(err error) bool   { return IsServerError(err, ErrCodeFileExists) }
func IsConflict(err error) bool     { return IsServerError(err, ErrCodeConflict) }

func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// codeForStatus maps a status code to the taxonomy when the response body
// did not carry an "error" field of its own.
func codeForStatus(status int) string {
	switch status {
	case 401:
		return ErrCodeUnauthorized
	case 404:
		return ErrCodeNotFound
	case 409:
		return ErrCodeConflict
	case 412:
		return ErrCodeFileExists
	default:
		return fmt.Sprintf("http_%d", status)
	}
}
