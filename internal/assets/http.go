/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package assets

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxAssetBytes bounds a single download.
const maxAssetBytes = 8 << 20

// HTTPFetcher downloads assets from an asset server.
type HTTPFetcher struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher returns a fetcher resolving links against baseURL.
// A non-empty token is sent as a bearer token.
func NewHTTPFetcher(baseURL, token string, timeout time.Duration, insecure bool) *HTTPFetcher {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
	}
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout, Transport: tr},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, link string) ([]byte, error) {
	url := link
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		url = f.baseURL + "/" + strings.TrimLeft(link, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, link)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", link, err)
	}
	if len(data) > maxAssetBytes {
		return nil, fmt.Errorf("fetch %s: asset larger than %d bytes", link, maxAssetBytes)
	}
	return data, nil
}
