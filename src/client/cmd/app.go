package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/oneclickvirt/console/src/apierror"
	"github.com/oneclickvirt/console/src/client/api"
	"github.com/oneclickvirt/console/src/client/paths"
	"github.com/oneclickvirt/console/src/host"
	"github.com/oneclickvirt/console/src/monitor"
	"github.com/oneclickvirt/console/src/request"
	"github.com/oneclickvirt/console/src/session"
)

// ErrReported means the failure was already shown to the user
var ErrReported = errors.New("failure already reported")

// appConfig is everything newApp needs, resolved from flags and viper
type appConfig struct {
	Address         string
	Timeout         time.Duration
	Store           session.StoreConfig
	MonitorInterval time.Duration
	MonitorDebounce time.Duration
	Route           string
}

func appConfigFromViper() appConfig {
	store := session.StoreConfig{
		Backend:    viper.GetString("session.backend"),
		File:       paths.Expand(viper.GetString("session.file")),
		RedisURL:   viper.GetString("session.redis_url"),
		SQLitePath: paths.Expand(viper.GetString("session.sqlite_path")),
		Prefix:     viper.GetString("session.prefix"),
		TTL:        viper.GetDuration("session.ttl"),
	}
	if store.File == "" {
		store.File = paths.SessionFile()
	}
	if store.SQLitePath == "" {
		store.SQLitePath = paths.SessionDB()
	}

	cfg := appConfig{
		Address:         viper.GetString("server.address"),
		Timeout:         time.Duration(viper.GetInt("server.timeout")) * time.Second,
		Store:           store,
		MonitorInterval: viper.GetDuration("monitor.interval"),
		MonitorDebounce: viper.GetDuration("monitor.debounce"),
	}
	if server != "" {
		cfg.Address = server
	}
	if timeout > 0 {
		cfg.Timeout = time.Duration(timeout) * time.Second
	}
	return cfg
}

// App is the wired console: persisted session, classifier, request
// profiles, domain API and status monitor.
type App struct {
	store    session.Store
	state    *session.State
	router   *host.Router
	notifier host.Notifier
	handler  *apierror.Handler
	api      *api.Client
	monitor  *monitor.Monitor
	registry *prometheus.Registry
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg appConfig, notifier host.Notifier, confirmer host.Confirmer, logger *slog.Logger) (*App, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("server address not configured. Use --server or run 'config set server.address <url>'")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := session.NewStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	state := session.New(store, session.WithLogger(logger))

	route := cfg.Route
	if route == "" {
		route = host.PathHome
	}
	router := host.NewRouter(route)
	router.Public(publicRoutes...)

	registry := prometheus.NewRegistry()
	classifier := apierror.NewClassifier(
		apierror.WithSession(state),
		apierror.WithNavigator(router),
		apierror.WithNotifier(notifier),
		apierror.WithLogger(logger),
	)

	base := api.BaseURL(cfg.Address)
	reqMetrics := request.NewMetrics(registry)
	client := func(p request.Profile) *request.Client {
		c := p.Config(base)
		if p == request.Interactive && cfg.Timeout > 0 {
			c.Timeout = cfg.Timeout
		}
		return request.New(c,
			request.WithTokenSource(state),
			request.WithClassifier(classifier),
			request.WithMetrics(reqMetrics),
			request.WithLogger(logger),
		)
	}
	interactive := client(request.Interactive)
	state.SetRequester(interactive)

	if err := state.Restore(ctx); err != nil {
		logger.Warn("could not restore session", "backend", cfg.Store.Backend, "error", err)
	}

	monOpts := []monitor.Option{
		monitor.WithNavigator(router),
		monitor.WithNotifier(notifier),
		monitor.WithLogger(logger),
		monitor.WithMetrics(monitor.NewMetrics(registry)),
	}
	if cfg.MonitorInterval > 0 {
		monOpts = append(monOpts, monitor.WithInterval(cfg.MonitorInterval))
	}
	if cfg.MonitorDebounce > 0 {
		monOpts = append(monOpts, monitor.WithDebounce(cfg.MonitorDebounce))
	}

	return &App{
		store:    store,
		state:    state,
		router:   router,
		notifier: notifier,
		handler:  apierror.NewHandler(classifier, notifier, confirmer),
		api: api.NewClient(api.Clients{
			Interactive: interactive,
			Health:      client(request.Health),
			Instance:    client(request.Instance),
		}),
		monitor:  monitor.New(state, monOpts...),
		registry: registry,
		logger:   logger,
	}, nil
}

// Close stops the monitor and releases the session store
func (a *App) Close() error {
	a.monitor.Stop()
	return a.store.Close()
}

// run executes fn through the error facade; failures are notified once
// and come back as ErrReported.
func run[T any](ctx context.Context, a *App, fn func(context.Context) (T, error), opts apierror.ExecOptions) (T, error) {
	res := apierror.Execute(ctx, a.handler, fn, opts)
	if !res.Success {
		return res.Data, ErrReported
	}
	return res.Data, nil
}

// writeMetrics prints every collected sample as "name{labels} value"
func (a *App) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)

			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
