//
// Copyright 2018-2025 Cristian Maglie. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
//

package zipfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// newHTTPClient returns the client used by a fetcher. Redirects are never
// followed by the client itself.
func newHTTPClient(config Config) *http.Client {
	noRedirect := func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if config.HttpClient != nil {
		client := *config.HttpClient
		client.CheckRedirect = noRedirect
		return &client
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   config.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.ResponseHeaderTimeout = config.ResponseHeaderTimeout
	// Content-Length must describe the archive itself.
	transport.DisableCompression = true

	return &http.Client{
		Transport:     transport,
		CheckRedirect: noRedirect,
	}
}

// connect performs the GET request, following up to config.MaxRedirects
// 301/302 responses, and returns the 200 OK response.
func (f *Fetcher) connect(ctx context.Context) (*http.Response, error) {
	target := f.req.SourceURL
	for hop := 0; ; hop++ {
		u, err := url.Parse(target)
		if err != nil {
			return nil, &ConnectionError{URL: target, Err: err}
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, &ConnectionError{URL: target, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
		}
		if u.Host == "" {
			return nil, &ConnectionError{URL: target, Err: errors.New("missing host")}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, &ConnectionError{URL: target, Err: fmt.Errorf("setting up HTTP request: %w", err)}
		}
		for k, v := range f.config.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, &ConnectionError{URL: target, Err: err}
		}

		isRedirect := resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound
		if isRedirect && hop < f.config.MaxRedirects {
			loc, err := resp.Location()
			discard(resp)
			if err != nil {
				return nil, &ConnectionError{URL: target, Err: fmt.Errorf("following redirect: %w", err)}
			}
			f.log.Debug("Redirected", "from", target, "to", loc.String(), "status", resp.StatusCode)
			target = loc.String()
			continue
		}

		if resp.StatusCode != http.StatusOK {
			discard(resp)
			return nil, &StatusError{URL: target, Code: resp.StatusCode}
		}
		return resp, nil
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
