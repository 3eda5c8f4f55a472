// Copyright 2022-2024 Boris HUISGEN. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package trellis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/bhuisgen/trellis/pkg/log"
)

// server implements the server.
type server struct {
	config    *serverConfig
	logger    *slog.Logger
	app       *Application
	server    *http.Server
	listener  net.Listener
	netListen func(network, address string) (net.Listener, error)
}

// serverConfig implements the server configuration.
type serverConfig struct {
	Address       *string `mapstructure:"address"`
	Port          *int    `mapstructure:"port"`
	Watch         *bool   `mapstructure:"watch"`
	ReadTimeout   *int    `mapstructure:"readTimeout"`
	WriteTimeout  *int    `mapstructure:"writeTimeout"`
	IdleTimeout   *int    `mapstructure:"idleTimeout"`
	RenderTimeout *int    `mapstructure:"renderTimeout"`
	Index         *string `mapstructure:"index"`
}

const (
	serverLogger string = "app.server"

	serverConfigDefaultAddress       string = "localhost"
	serverConfigDefaultPort          int    = 8080
	serverConfigDefaultWatch         bool   = false
	serverConfigDefaultReadTimeout   int    = 60
	serverConfigDefaultWriteTimeout  int    = 60
	serverConfigDefaultIdleTimeout   int    = 60
	serverConfigDefaultRenderTimeout int    = 30
	serverConfigDefaultIndex         string = "index"

	serverHeaderRenderId    string = "X-Render-Id"
	serverHeaderServer      string = "Server"
	serverHeaderServerValue string = "trellis"

	serverWatchDelay time.Duration = 100 * time.Millisecond
)

// serverNetListen redirects to net.Listen.
func serverNetListen(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// newServer creates a new server.
func newServer(app *Application) *server {
	return &server{
		logger:    log.New(serverLogger),
		app:       app,
		netListen: serverNetListen,
	}
}

// Init initializes the server.
func (s *server) Init(config map[string]interface{}) error {
	if err := mapstructure.Decode(config, &s.config); err != nil {
		s.logger.Error("Failed to parse configuration", "err", err)
		return fmt.Errorf("parse config: %w", err)
	}
	if s.config == nil {
		s.config = &serverConfig{}
	}

	var errConfig bool

	if s.config.Address == nil {
		defaultValue := serverConfigDefaultAddress
		s.config.Address = &defaultValue
	}
	if s.config.Port == nil {
		defaultValue := serverConfigDefaultPort
		s.config.Port = &defaultValue
	}
	if *s.config.Port < 0 || *s.config.Port > 65535 {
		s.logger.Error("Invalid value", "option", "port", "value", *s.config.Port)
		errConfig = true
	}
	if s.config.Watch == nil {
		defaultValue := serverConfigDefaultWatch
		s.config.Watch = &defaultValue
	}
	for _, option := range []struct {
		name         string
		value        **int
		defaultValue int
	}{
		{"readTimeout", &s.config.ReadTimeout, serverConfigDefaultReadTimeout},
		{"writeTimeout", &s.config.WriteTimeout, serverConfigDefaultWriteTimeout},
		{"idleTimeout", &s.config.IdleTimeout, serverConfigDefaultIdleTimeout},
		{"renderTimeout", &s.config.RenderTimeout, serverConfigDefaultRenderTimeout},
	} {
		if *option.value == nil {
			defaultValue := option.defaultValue
			*option.value = &defaultValue
		}
		if **option.value < 0 {
			s.logger.Error("Invalid value", "option", option.name, "value", **option.value)
			errConfig = true
		}
	}
	if s.config.Index == nil {
		defaultValue := serverConfigDefaultIndex
		s.config.Index = &defaultValue
	}

	if errConfig {
		return errors.New("config")
	}

	return nil
}

// Start starts listening and serving the requests.
func (s *server) Start() error {
	listener, err := s.netListen("tcp", net.JoinHostPort(*s.config.Address, strconv.Itoa(*s.config.Port)))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      h2c.NewHandler(s.middleware(s), &http2.Server{}),
		ReadTimeout:  time.Duration(*s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(*s.config.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(*s.config.IdleTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	go func() {
		s.logger.Info("Listening", "url", fmt.Sprintf("http://%s", s.listener.Addr()))

		if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Failed to serve", "err", err)
		}
	}()

	return nil
}

// Shutdown shutdowns the server gracefully.
func (s *server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// middleware implements the server middleware.
func (s *server) middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				s.logger.Error("Error handler", "err", err, "stack", string(debug.Stack()))
			}
		}()

		w.Header().Set(serverHeaderServer, serverHeaderServerValue)
		w.Header().Set(serverHeaderRenderId, uuid.NewString())

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// ServeHTTP renders the template named by the request path with the query
// values as root context.
func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(r.URL.Path, "/")
	if name == "" {
		name = *s.config.Index
	}
	if !s.app.HasTemplate(name) {
		http.NotFound(w, r)
		return
	}

	id := w.Header().Get(serverHeaderRenderId)
	logger := s.logger.With("id", id)

	ctx := r.Context()
	if *s.config.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(*s.config.RenderTimeout)*time.Second)
		defer cancel()
	}

	var buf bytes.Buffer
	if err := s.app.Render(ctx, name, queryData(r.URL.Query()), &buf); err != nil {
		logger.Error("Failed to render template", "template", name, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger.Debug("Template rendered", "template", name, "size", buf.Len())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(buf.Bytes())
}

// queryData returns the root context of query values. A key with several
// values is a list.
func queryData(values url.Values) map[string]any {
	data := make(map[string]any, len(values))
	for k, v := range values {
		switch len(v) {
		case 0:
		case 1:
			data[k] = v[0]
		default:
			list := make([]any, len(v))
			for i := range v {
				list[i] = v[i]
			}
			data[k] = list
		}
	}
	return data
}

// watch reloads the templates on changes of the templates directory until
// ctx is done.
func (s *server) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	dir := *s.app.templates.Dir
	ext := *s.app.templates.Extension

	if err := watchDir(watcher, dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.logger.Info("Watching templates", "dir", dir)

	go func() {
		defer watcher.Close()

		timer := time.NewTimer(serverWatchDelay)
		timer.Stop()

		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
						if err := watchDir(watcher, event.Name); err != nil {
							s.logger.Error("Failed to watch directory", "dir", event.Name, "err", err)
						}
						continue
					}
				}
				if filepath.Ext(event.Name) != ext || event.Has(fsnotify.Chmod) {
					continue
				}
				s.logger.Debug("Template changed", "file", event.Name, "op", event.Op.String())
				timer.Reset(serverWatchDelay)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("Watcher error", "err", err)

			case <-timer.C:
				s.app.Reload()
			}
		}
	}()

	return nil
}

// watchDir adds a directory and its subdirectories to the watcher.
func watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

// Serve runs the server until a termination signal is received or ctx is
// done. SIGHUP reloads the templates.
func (a *Application) Serve(ctx context.Context) error {
	s := newServer(a)
	if err := s.Init(a.config.Server); err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if *s.config.Watch {
		if err := s.watch(ctx); err != nil {
			a.logger.Error("Failed to watch templates", "err", err)
			return err
		}
	}

	if err := s.Start(); err != nil {
		a.logger.Error("Failed to start server", "err", err)
		return fmt.Errorf("start server: %w", err)
	}

	a.logger.Info("Instance ready", "backend", a.Backend(), "templates", len(a.Templates()))

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(exit)
	defer signal.Stop(reload)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-exit:
			a.logger.Info("Signal SIGINT/SIGTERM received, stopping instance")
			break loop
		case <-reload:
			a.logger.Info("Signal SIGHUP received, reloading templates")
			a.Reload()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Failed to shutdown server", "err", err)
		return fmt.Errorf("shutdown server: %w", err)
	}

	a.logger.Info("Instance terminated")

	return nil
}

var _ http.Handler = (*server)(nil)
