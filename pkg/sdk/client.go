// Package sdk assembles the client engine: one explicitly constructed
// Client wires the credential store, request executor, booking and
// auth services, notification synchronizer, action executor, push
// listener, and background poller. There is no hidden singleton; the
// application holds the Client and disposes it with Close.
package sdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zonebook/zonebook-go/internal/auth"
	"github.com/zonebook/zonebook-go/internal/booking"
	"github.com/zonebook/zonebook-go/internal/credential"
	"github.com/zonebook/zonebook-go/internal/notify"
	"github.com/zonebook/zonebook-go/internal/platform/config"
	"github.com/zonebook/zonebook-go/internal/platform/logger"
	"github.com/zonebook/zonebook-go/internal/platform/metrics"
	"github.com/zonebook/zonebook-go/internal/push"
	"github.com/zonebook/zonebook-go/internal/transport"
)

// Client is the composition root of the client engine
type Client struct {
	cfg *config.Config
	log logger.Logger

	Credentials   credential.Store
	Auth          *auth.Service
	Bookings      *booking.Service
	Notifications *notify.Synchronizer
	Actions       *notify.Actions

	listener *push.Listener
	poller   *notify.Poller

	started bool
}

// Option configures a Client
type Option func(*options)

type options struct {
	log        logger.Logger
	creds      credential.Store
	httpClient *http.Client
	registry   prometheus.Registerer
}

// WithLogger sets a custom logger
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithCredentialStore sets a custom credential store, replacing the
// default keyring-backed one
func WithCredentialStore(store credential.Store) Option {
	return func(o *options) {
		o.creds = store
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

// WithMetricsRegistry sets the prometheus registry metrics register
// against
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// New wires a Client from configuration.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.log
	if log == nil {
		log = logger.New(cfg.Logger)
	}

	creds := o.creds
	if creds == nil {
		var err error
		creds, err = credential.NewKeyringStore(cfg.Keyring)
		if err != nil {
			return nil, fmt.Errorf("opening credential store: %w", err)
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace, o.registry)
	}

	execOpts := []transport.Option{
		transport.WithTimeout(cfg.API.RequestTimeout),
		transport.WithRetryConfig(&transport.RetryConfig{
			MaxAttempts: cfg.API.MaxAttempts,
			Delay:       cfg.API.RetryDelay,
			MaxDelay:    cfg.API.MaxRetryDelay,
		}),
	}
	if m != nil {
		execOpts = append(execOpts, transport.WithMetrics(m))
	}
	if o.httpClient != nil {
		execOpts = append(execOpts, transport.WithHTTPClient(o.httpClient))
	}
	api := transport.NewExecutor(cfg.API.BaseURL, creds, log, execOpts...)

	synchronizer := notify.NewSynchronizer(api, creds, log, m, cfg.Sync.PageSize)
	bookings := booking.NewService(api)

	c := &Client{
		cfg:           cfg,
		log:           log,
		Credentials:   creds,
		Auth:          auth.NewService(api, creds, log),
		Bookings:      bookings,
		Notifications: synchronizer,
		Actions:       notify.NewActions(synchronizer, bookings, api, log, m),
	}

	if cfg.Push.Enabled {
		c.listener = push.NewListener(cfg.Push, creds, synchronizer, log)
	}

	poller, err := notify.NewPoller(synchronizer, cfg.Sync.RefreshSchedule, log)
	if err != nil {
		return nil, err
	}
	c.poller = poller

	return c, nil
}

// Start begins the session background work: the push stream and the
// scheduled refresh. Call after sign-in; Close releases both.
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return nil
	}
	c.started = true

	if err := c.poller.Start(); err != nil {
		return err
	}
	if c.listener != nil {
		c.listener.Start(ctx)
	}
	c.poller.Trigger()
	return nil
}

// Close stops background work. The Client must not be used afterwards.
func (c *Client) Close() error {
	if !c.started {
		return nil
	}
	c.started = false

	if c.listener != nil {
		c.listener.Stop()
	}
	c.poller.Stop()
	return nil
}

// RefreshNow triggers an immediate notification refresh through the
// background poller.
func (c *Client) RefreshNow() {
	c.poller.Trigger()
}
