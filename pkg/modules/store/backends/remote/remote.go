// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package remote

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/mitchellh/mapstructure"

	"github.com/bhuisgen/trellis/pkg/core"
	"github.com/bhuisgen/trellis/pkg/module"
)

// remoteBackend implements the remote backend.
//
// Items are documents of a key-value HTTP service. The key of an item is its
// identifier with the prefix of its category.
type remoteBackend struct {
	config                         *remoteBackendConfig
	logger                         *slog.Logger
	client                         http.Client
	osReadFile                     func(name string) ([]byte, error)
	x509CertPoolAppendCertsFromPEM func(pool *x509.CertPool, pemCerts []byte) bool
	httpNewRequestWithContext      func(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error)
	httpClientDo                   func(client *http.Client, req *http.Request) (*http.Response, error)
	ioReadAll                      func(r io.Reader) ([]byte, error)
}

// remoteBackendConfig implements the remote backend configuration.
type remoteBackendConfig struct {
	URL             string            `mapstructure:"url"`
	Prefixes        map[string]string `mapstructure:"prefixes"`
	Filter          *string           `mapstructure:"filter"`
	TLSCAFiles      *[]string         `mapstructure:"tlsCAFiles"`
	Timeout         *int              `mapstructure:"timeout"`
	MaxConnsPerHost *int              `mapstructure:"maxConnsPerHost"`
	IdleConnTimeout *int              `mapstructure:"idleConnTimeout"`
	Retry           *int              `mapstructure:"retry"`
	RetryDelay      *int              `mapstructure:"retryDelay"`
	Headers         map[string]string `mapstructure:"headers"`
}

const (
	remoteModuleID module.ModuleID = "store.backend.remote"

	remoteConfigDefaultFilter          string = "$.Item.Data"
	remoteConfigDefaultTimeout         int    = 30
	remoteConfigDefaultMaxConnsPerHost int    = 100
	remoteConfigDefaultIdleConnTimeout int    = 60
	remoteConfigDefaultRetry           int    = 1
	remoteConfigDefaultRetryDelay      int    = 1
)

// remoteConfigDefaultPrefixes returns the default key prefixes of the categories.
func remoteConfigDefaultPrefixes() map[string]string {
	return map[string]string{
		"article": "article#",
	}
}

// remoteOsReadFile redirects to os.ReadFile.
func remoteOsReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// remoteX509CertPoolAppendCertsFromPEM redirects to x509.CertPool.AppendCertsFromPEM.
func remoteX509CertPoolAppendCertsFromPEM(pool *x509.CertPool, pemCerts []byte) bool {
	return pool.AppendCertsFromPEM(pemCerts)
}

// remoteHttpNewRequestWithContext redirects to http.NewRequestWithContext.
func remoteHttpNewRequestWithContext(ctx context.Context, method string, url string,
	body io.Reader) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, url, body)
}

// remoteHttpClientDo redirects to http.Client.Do.
func remoteHttpClientDo(client *http.Client, req *http.Request) (*http.Response, error) {
	return client.Do(req)
}

// remoteIoReadAll redirects to io.ReadAll.
func remoteIoReadAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(r)
}

// init initializes the module.
func init() {
	module.Register(remoteBackend{})
}

// ModuleInfo returns the module information.
func (b remoteBackend) ModuleInfo() module.ModuleInfo {
	return module.ModuleInfo{
		ID: remoteModuleID,
		NewInstance: func() module.Module {
			return &remoteBackend{
				osReadFile:                     remoteOsReadFile,
				x509CertPoolAppendCertsFromPEM: remoteX509CertPoolAppendCertsFromPEM,
				httpNewRequestWithContext:      remoteHttpNewRequestWithContext,
				httpClientDo:                   remoteHttpClientDo,
				ioReadAll:                      remoteIoReadAll,
			}
		},
	}
}

// Init initializes the backend.
//
// The backend is unavailable if no service URL is configured.
func (b *remoteBackend) Init(config map[string]interface{}, logger *slog.Logger) error {
	b.logger = logger

	if err := mapstructure.Decode(config, &b.config); err != nil {
		b.logger.Error("Failed to parse configuration", "err", err)
		return fmt.Errorf("parse config: %w", err)
	}
	if b.config == nil {
		b.config = &remoteBackendConfig{}
	}

	var errConfig bool

	if b.config.URL == "" {
		return errors.New("missing service url")
	}
	if _, err := url.ParseRequestURI(b.config.URL); err != nil {
		b.logger.Error("Invalid value", "option", "url", "value", b.config.URL)
		errConfig = true
	}
	if b.config.Prefixes == nil {
		b.config.Prefixes = remoteConfigDefaultPrefixes()
	}
	if b.config.Filter == nil {
		defaultValue := remoteConfigDefaultFilter
		b.config.Filter = &defaultValue
	}
	if b.config.Timeout == nil {
		defaultValue := remoteConfigDefaultTimeout
		b.config.Timeout = &defaultValue
	}
	if *b.config.Timeout < 0 {
		b.logger.Error("Invalid value", "option", "timeout", "value", *b.config.Timeout)
		errConfig = true
	}
	if b.config.MaxConnsPerHost == nil {
		defaultValue := remoteConfigDefaultMaxConnsPerHost
		b.config.MaxConnsPerHost = &defaultValue
	}
	if *b.config.MaxConnsPerHost < 0 {
		b.logger.Error("Invalid value", "option", "maxConnsPerHost", "value", *b.config.MaxConnsPerHost)
		errConfig = true
	}
	if b.config.IdleConnTimeout == nil {
		defaultValue := remoteConfigDefaultIdleConnTimeout
		b.config.IdleConnTimeout = &defaultValue
	}
	if *b.config.IdleConnTimeout < 0 {
		b.logger.Error("Invalid value", "option", "idleConnTimeout", "value", *b.config.IdleConnTimeout)
		errConfig = true
	}
	if b.config.Retry == nil {
		defaultValue := remoteConfigDefaultRetry
		b.config.Retry = &defaultValue
	}
	if *b.config.Retry < 1 {
		b.logger.Error("Invalid value", "option", "retry", "value", *b.config.Retry)
		errConfig = true
	}
	if b.config.RetryDelay == nil {
		defaultValue := remoteConfigDefaultRetryDelay
		b.config.RetryDelay = &defaultValue
	}
	if *b.config.RetryDelay < 0 {
		b.logger.Error("Invalid value", "option", "retryDelay", "value", *b.config.RetryDelay)
		errConfig = true
	}
	for k := range b.config.Headers {
		if k == "" {
			b.logger.Error("Invalid key", "option", "headers", "key", k)
			errConfig = true
		}
	}

	if errConfig {
		return errors.New("config")
	}

	tlsConfig := &tls.Config{}
	if b.config.TLSCAFiles != nil {
		caCertPool := x509.NewCertPool()
		for _, tlsCAFile := range *b.config.TLSCAFiles {
			ca, err := b.osReadFile(tlsCAFile)
			if err != nil {
				return fmt.Errorf("read CA file: %w", err)
			}
			b.x509CertPoolAppendCertsFromPEM(caCertPool, ca)
		}
		tlsConfig.RootCAs = caCertPool
	}

	transport := http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: time.Duration(*b.config.Timeout) * time.Second,
		}).DialContext,
		TLSClientConfig:       tlsConfig,
		TLSHandshakeTimeout:   time.Duration(*b.config.Timeout) * time.Second,
		ResponseHeaderTimeout: time.Duration(*b.config.Timeout) * time.Second,
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       *b.config.MaxConnsPerHost,
		MaxIdleConnsPerHost:   *b.config.MaxConnsPerHost,
		IdleConnTimeout:       time.Duration(*b.config.IdleConnTimeout) * time.Second,
	}

	b.client = http.Client{
		Transport: &transport,
		Timeout:   time.Duration(*b.config.Timeout) * time.Second,
	}

	return nil
}

// Get returns the document of an item.
//
// Lookup failures are logged and reported as a nil item without error.
func (b *remoteBackend) Get(ctx context.Context, category string, id string) (any, error) {
	key := b.config.Prefixes[category] + id

	body, err := b.fetch(ctx, key)
	if err != nil {
		b.logger.Error("Failed to get item", "category", category, "key", key, "err", err)
		return nil, nil
	}

	var document any
	if err := json.Unmarshal(body, &document); err != nil {
		b.logger.Error("Failed to parse item", "category", category, "key", key, "err", err)
		return nil, nil
	}

	data, err := jsonpath.Get(*b.config.Filter, document)
	if err != nil {
		b.logger.Error("Failed to filter item", "category", category, "key", key, "filter", *b.config.Filter,
			"err", err)
		return nil, nil
	}

	return data, nil
}

// fetch sends the request of a key and returns the response body.
func (b *remoteBackend) fetch(ctx context.Context, key string) ([]byte, error) {
	target := strings.TrimSuffix(b.config.URL, "/") + "/" + url.PathEscape(key)

	var attempt int
	for {
		attempt += 1

		req, err := b.httpNewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range b.config.Headers {
			req.Header.Set(k, v)
		}

		response, err := b.httpClientDo(&b.client, req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		responseBody, err := b.ioReadAll(response.Body)
		response.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		b.logger.Debug("Request", "method", req.Method, "url", req.URL.String(), "code", response.StatusCode)

		switch response.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			if attempt >= *b.config.Retry {
				return nil, fmt.Errorf("request error %d", response.StatusCode)
			}

			b.logger.Warn("Retrying request", "attempt", attempt, "retry", *b.config.Retry,
				"delay", *b.config.RetryDelay)

			if *b.config.RetryDelay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(time.Duration(*b.config.RetryDelay) * time.Second):
				}
			}

			continue

		default:
			if response.StatusCode < 200 || response.StatusCode > 299 {
				return nil, fmt.Errorf("request error %d", response.StatusCode)
			}
		}

		return responseBody, nil
	}
}

var _ core.StoreBackendModule = (*remoteBackend)(nil)
