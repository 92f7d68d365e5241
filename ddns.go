package cfddns

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// Resolver produces the public address that DNS should point at.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) { return f(ctx) }

// Provider reconciles the address records for name in zone with addr.
type Provider interface {
	SyncRecords(ctx context.Context, zone string, name string, addr netip.Addr) (Result, error)
}

// Runner is anything that can perform a single update run.
// *Client is the implementation supplied by this package.
type Runner interface {
	Run(context.Context) (Result, error)
}

// Result describes what a sync run found and did.
type Result struct {
	// Addr is the address the records were reconciled against.
	Addr netip.Addr
	// Matched counts the records found for the configured name.
	Matched int
	// Updated counts the records rewritten with Addr.
	// In dry-run mode it counts the records that would have been rewritten.
	Updated int
	// Current counts the records that already held Addr.
	Current int
}

// UpToDate reports whether records exist and none of them needed a write.
func (r Result) UpToDate() bool { return r.Matched > 0 && r.Updated == 0 }

// New returns a Client which updates the records for name inside zone.
//
// A DNS provider is required and must be registered with UsingCloudflare,
// UsingCloudflareAPI, or UsingProvider.
// The default resolver queries api.ipify.org; see UsingWebResolver,
// UsingResolver, and FromString for alternatives.
func New(zone string, name string, options ...Option) (*Client, error) {
	if zone == "" {
		return nil, fmt.Errorf("cfddns.New: %w", ErrMissingZone)
	}
	if name == "" {
		return nil, fmt.Errorf("cfddns.New: %w", ErrMissingRecordName)
	}
	c := &Client{
		resolver: WebResolver(),
		zone:     zone,
		name:     name,
		logger:   zap.NewNop(),
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("cfddns.New: option %d returned an error: %w", i, err)
		}
	}

	if c.provider == nil {
		return nil, fmt.Errorf("cfddns.New: no DNS provider was registered - use cfddns.UsingCloudflare or cfddns.UsingProvider")
	}

	// Options may arrive in any order,
	// so the logger and dry-run flag are pushed down to the provider last.
	if p, ok := c.provider.(*cloudflareProvider); ok {
		p.logger = c.logger
		p.dryRun = c.dryRun
	}
	return c, nil
}

// Option configures a Client created by New.
type Option func(*Client) error

// UsingCloudflare registers a Cloudflare DNS provider authenticated with an API token.
func UsingCloudflare(token string) Option {
	return func(c *Client) (err error) {
		if c.provider, err = newCloudflareProvider(token); err != nil {
			return fmt.Errorf("cfddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingCloudflareAPI registers a Cloudflare DNS provider on top of an
// already-constructed API client.
// This is how tests point the provider at a fake API server.
func UsingCloudflareAPI(api *cloudflare.API) Option {
	return func(c *Client) error {
		c.provider = &cloudflareProvider{api: api, logger: zap.NewNop()}
		return nil
	}
}

// UsingProvider registers a custom Provider implementation.
func UsingProvider(p Provider) Option {
	return func(c *Client) error {
		if p == nil {
			return fmt.Errorf("cfddns.UsingProvider: provider cannot be nil")
		}
		c.provider = p
		return nil
	}
}

// UsingResolver registers the resolver used to detect the public address.
// A nil resolver restores the default.
func UsingResolver(resolver Resolver) Option {
	return func(c *Client) error {
		if resolver == nil {
			resolver = WebResolver()
		}
		c.resolver = resolver
		return nil
	}
}

// UsingWebResolver registers a web resolver querying the given IP echo services.
func UsingWebResolver(serviceURL ...string) Option {
	return func(c *Client) error {
		c.resolver = WebResolver(serviceURL...)
		return nil
	}
}

// WithLogger sets the logger used by the client and its provider.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
		return nil
	}
}

// WithDryRun makes the provider log intended record writes without performing them.
func WithDryRun(dryRun bool) Option {
	return func(c *Client) error {
		c.dryRun = dryRun
		return nil
	}
}

// UsingHTTPClient overrides the HTTP client used for resolver lookups and API calls.
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		if wr, ok := c.resolver.(*webResolver); ok {
			wr.httpClient = httpclient
		}
		if p, ok := c.provider.(*cloudflareProvider); ok {
			cloudflare.HTTPClient(httpclient)(p.api)
		}
		return nil
	}
}

// Client runs dynamic DNS updates for a single record name.
type Client struct {
	resolver Resolver
	provider Provider
	logger   *zap.Logger
	zone     string
	name     string
	dryRun   bool
}

// Run performs one resolve-and-sync pass.
// The resolver is consulted exactly once; there are no retries.
func (c *Client) Run(ctx context.Context) (Result, error) {
	addr, err := c.resolver.Resolve(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("error resolving public address: %w", err)
	}
	c.logger.Debug("resolved public address", zap.Stringer("addr", addr))

	result, err := c.provider.SyncRecords(ctx, c.zone, c.name, addr)
	if err != nil {
		return result, fmt.Errorf("error syncing records for %s: %w", c.name, err)
	}
	return result, nil
}

// RunDaemon starts runner as a goroutine which repeats until ctx is cancelled.
//
// Intervals below one minute are raised to one minute.
// A nil logger discards run errors.
func RunDaemon(runner Runner, ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := runner.Run(ctx); err != nil {
					logger.Error("update run failed", zap.Error(err))
				}
			}
		}
	}()
}
