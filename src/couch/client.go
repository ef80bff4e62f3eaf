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

// Package couch talks to the CouchDB admin HTTP API. All requests flow
// through Client, which normalizes every outcome into either a decoded
// JSON success body or one of the typed errors in errors.go. Nothing
// downstream re-inspects raw HTTP responses.
package couch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
)

// Config holds configuration for the admin-API client.
type Config struct {
	// Timeout is the maximum time for a single request attempt.
	// Default: 30 seconds.
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Retries never apply to POST requests. Default: 3.
	MaxRetries int

	// RetryWaitMin/RetryWaitMax bound the exponential backoff between
	// retries. Defaults: 1s / 10s.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// Client is a wrapper around go-retryablehttp that speaks the CouchDB
// admin API: JSON bodies both ways, basic auth taken from URL userinfo,
// and the error taxonomy decoded once per response.
type Client struct {
	retryClient *retryablehttp.Client

	// postClient never retries: a POST to _replicate that failed mid-flight
	// may already have started a job on the server.
	postClient *retryablehttp.Client
}

func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryWaitMin == 0 {
		config.RetryWaitMin = 1 * time.Second
	}
	if config.RetryWaitMax == 0 {
		config.RetryWaitMax = 10 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{Timeout: config.Timeout}
	retryClient.RetryMax = config.MaxRetries
	retryClient.RetryWaitMin = config.RetryWaitMin
	retryClient.RetryWaitMax = config.RetryWaitMax

	// Disable default logging from retryablehttp; we log through logrus.
	retryClient.Logger = nil
	retryClient.CheckRetry = checkRetry
	retryClient.RequestLogHook = requestLogHook

	postClient := retryablehttp.NewClient()
	postClient.HTTPClient = retryClient.HTTPClient
	postClient.RetryMax = 0
	postClient.Logger = nil

	return &Client{retryClient: retryClient, postClient: postClient}
}

// Get performs a GET request and unmarshals the JSON response into response.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, response interface{}) error {
	return c.do(ctx, http.MethodGet, rawURL, query, nil, response)
}

// Put performs a PUT request with an optional JSON payload.
func (c *Client) Put(ctx context.Context, rawURL string, query url.Values, payload, response interface{}) error {
	return c.do(ctx, http.MethodPut, rawURL, query, payload, response)
}

// Post performs a POST request with a JSON payload. Never retried.
func (c *Client) Post(ctx context.Context, rawURL string, payload, response interface{}) error {
	return c.do(ctx, http.MethodPost, rawURL, nil, payload, response)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string, query url.Values, response interface{}) error {
	return c.do(ctx, http.MethodDelete, rawURL, query, nil, response)
}

func (c *Client) do(ctx context.Context, method, rawURL string, query url.Values, payload, response interface{}) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &TransportError{Method: method, URL: rawURL, Err: err}
	}
	if len(query) > 0 {
		merged := parsedURL.Query()
		for key, values := range query {
			merged[key] = values
		}
		parsedURL.RawQuery = merged.Encode()
	}

	// Basic auth comes from URL userinfo; strip it before sending so
	// credentials never appear in request lines or logs.
	userInfo := parsedURL.User
	parsedURL.User = nil
	requestURL := parsedURL.String()

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return &TransportError{Method: method, URL: requestURL, Err: err}
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return &TransportError{Method: method, URL: requestURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userInfo != nil {
		password, _ := userInfo.Password()
		req.SetBasicAuth(userInfo.Username(), password)
	}

	httpClient := c.retryClient
	if method == http.MethodPost {
		httpClient = c.postClient
	}

	startTime := time.Now()
	resp, err := httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Warnf("%s %s failed after %s: %v", method, requestURL, duration, err)
		return &TransportError{Method: method, URL: requestURL, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, URL: requestURL, Err: err}
	}
	log.Debugf("%s %s completed: status=%d, duration=%s", method, requestURL, resp.StatusCode, duration)

	return decodeResponse(method, requestURL, resp.StatusCode, respBody, response)
}

// decodeResponse classifies the response exactly once. Error bodies are
// JSON objects with "error"/"reason" fields; some endpoints return 2xx
// bodies that still carry an error marker, which count as failures too.
func decodeResponse(method, requestURL string, status int, body []byte, response interface{}) error {
	var probe struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	// Body may be a bare JSON string or array; a decode failure just
	// means there is no error marker to find.
	_ = json.Unmarshal(body, &probe)

	if status < 200 || status >= 300 || probe.Error != "" {
		code := probe.Error
		if code == "" {
			code = codeForStatus(status)
		}
		return &ServerError{
			Method:     method,
			URL:        requestURL,
			StatusCode: status,
			Code:       code,
			Reason:     probe.Reason,
			Body:       string(body),
		}
	}

	if response != nil {
		if err := json.Unmarshal(body, response); err != nil {
			return &TransportError{Method: method, URL: requestURL, Err: err}
		}
	}
	return nil
}

// checkRetry retries transport-level failures and 5xx responses. Only the
// idempotent-verb client uses this policy.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return resp.StatusCode >= 500, nil
}

func requestLogHook(logger retryablehttp.Logger, req *http.Request, attemptNum int) {
	if attemptNum > 0 {
		log.Infof("Retrying request: attempt=%d, method=%s, url=%s", attemptNum+1, req.Method, req.URL.String())
	}
}
