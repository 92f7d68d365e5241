package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"cfddns"
	"cfddns/internal/config"
	"cfddns/internal/logging"
	"cfddns/internal/metrics"
	"cfddns/internal/notify"
	"cfddns/internal/proclock"
)

// Exit codes form the external contract relied on by wrapper scripts and
// schedulers. They must stay stable across releases.
const (
	exitOK           = 0 // record updated, would-update in dry-run, or nothing to manage
	exitUsage        = 2 // command line could not be parsed
	exitMissingToken = 2 // no API token via flag, environment, or token file
	exitNetwork      = 3 // IP lookup or Cloudflare API failure
	exitZoneNotFound = 4 // the configured zone does not exist
	exitMissingNames = 6 // zone or record name missing after merging flags and env
	exitNoChange     = 7 // records exist and already hold the detected address
)

var (
	cfg      config.Config
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "cfddns",
	Short: "Keep a Cloudflare DNS record pointed at this host's public IP",
	Long: `cfddns detects the host's public IP address and, when it differs from the
configured Cloudflare record, rewrites the record content while preserving
its TTL and proxied settings.

Dry-run mode is enabled by default; set DDNS_DRY_RUN=0 to perform real updates.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		exitCode = run()
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return exitUsage
	}
	return exitCode
}

func run() int {
	logger := logging.New(config.LogLevelFromEnv(), os.Getenv(config.EnvLogFile))
	defer func() { _ = logger.Sync() }()

	lockPath := cfg.LockFile
	if lockPath == "" {
		lockPath = os.Getenv(config.EnvLockFile)
	}
	if lockPath == "" {
		lockPath = proclock.DefaultPath()
	}
	release, held, err := proclock.Acquire(lockPath)
	if err != nil {
		logger.Warn("could not use lock file; continuing unlocked",
			zap.String("path", lockPath), zap.Error(err))
	} else if !held {
		// Another invocation is already running. Not an error.
		logger.Debug("another instance holds the lock", zap.String("path", lockPath))
		return exitOK
	} else {
		defer release()
	}

	cfg.DryRun = config.DryRunFromEnv()
	if err := cfg.Load(logger); err != nil {
		logger.Error("error loading configuration", zap.Error(err))
		return notifyOutcome(logger, exitNetwork)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return notifyOutcome(logger, exitCodeFor(cfddns.Result{}, err))
	}

	client, err := cfddns.New(cfg.Zone, cfg.Name,
		cfddns.UsingCloudflare(cfg.Token),
		cfddns.UsingResolver(buildResolver()),
		cfddns.WithLogger(logger),
		cfddns.WithDryRun(cfg.DryRun),
	)
	if err != nil {
		logger.Error("error creating client", zap.Error(err))
		return notifyOutcome(logger, exitCodeFor(cfddns.Result{}, err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Interval > 0 {
		return runDaemon(ctx, client, logger)
	}

	result, err := client.Run(ctx)
	code := exitCodeFor(result, err)
	logOutcome(logger, result, err, code)
	return notifyOutcome(logger, code)
}

// runDaemon re-runs the update on a timer until interrupted.
// The exit-code and notification contract applies to single-shot mode only.
func runDaemon(ctx context.Context, client *cfddns.Client, logger *zap.Logger) int {
	runner := metrics.Instrument(client)
	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr, logger)
	}
	if _, err := runner.Run(ctx); err != nil {
		logger.Error("update run failed", zap.Error(err))
	}
	cfddns.RunDaemon(runner, ctx, cfg.Interval, logger)
	<-ctx.Done()
	logger.Info("shutting down")
	return exitOK
}

func buildResolver() cfddns.Resolver {
	switch {
	case cfg.IP != "":
		return cfddns.FromString(cfg.IP)
	case len(cfg.Interfaces) > 0:
		return cfddns.InterfaceResolver(cfg.Interfaces...)
	default:
		return cfddns.WebResolver(cfg.ResolverURLs...)
	}
}

func exitCodeFor(result cfddns.Result, err error) int {
	switch {
	case errors.Is(err, cfddns.ErrMissingToken):
		return exitMissingToken
	case errors.Is(err, cfddns.ErrMissingZone), errors.Is(err, cfddns.ErrMissingRecordName):
		return exitMissingNames
	case errors.Is(err, cfddns.ErrZoneNotFound):
		return exitZoneNotFound
	case err != nil:
		return exitNetwork
	case result.UpToDate():
		return exitNoChange
	default:
		return exitOK
	}
}

func logOutcome(logger *zap.Logger, result cfddns.Result, err error, code int) {
	switch {
	case err != nil:
		logger.Error("update failed", zap.Error(err), zap.Int("exit_code", code))
	case code == exitNoChange:
		logger.Info("no action needed",
			zap.Stringer("addr", result.Addr),
			zap.Int("records", result.Matched))
	case result.Matched == 0:
		logger.Info("no records to manage",
			zap.String("name", cfg.Name),
			zap.String("zone", cfg.Zone))
	case cfg.DryRun:
		logger.Info("dry run finished; records left untouched",
			zap.Stringer("addr", result.Addr),
			zap.Int("would_update", result.Updated))
	default:
		logger.Info("update finished",
			zap.Stringer("addr", result.Addr),
			zap.Int("updated", result.Updated))
	}
}

// notifyOutcome sends the outcome mail when SMTP settings are present and
// returns code unchanged. Exit 7 is steady state and never notifies.
func notifyOutcome(logger *zap.Logger, code int) int {
	if !cfg.NotifyConfigured() || code == exitNoChange {
		return code
	}
	mailer, err := notify.NewMailer(cfg.SMTPHost, cfg.SMTPUsername, cfg.SMTPPassword, logger)
	if err != nil {
		logger.Error("error creating mailer", zap.Error(err))
		return code
	}
	title := "cfddns: update succeeded"
	if code != exitOK {
		title = "cfddns: update failed"
	}
	body := fmt.Sprintf("zone=%s name=%s exit=%d", cfg.Zone, cfg.Name, code)
	_ = mailer.Send(title, body)
	return code
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.Flags()
	f.StringVarP(&cfg.Token, "token", "t", "", "Cloudflare API token")
	f.StringVarP(&cfg.Zone, "zone", "z", "", "Cloudflare zone name (e.g. example.com)")
	f.StringVarP(&cfg.Name, "name", "n", "", "DNS record name to update (e.g. host.example.com)")
	f.StringVar(&cfg.SMTPHost, "smtp", "", "SMTP host for outcome notification mail")
	f.StringVar(&cfg.SMTPUsername, "username", "", "SMTP username (also used as sender and recipient)")
	f.StringVar(&cfg.SMTPPassword, "password", "", "SMTP password")
	f.StringVar(&cfg.IP, "ip", "", "use a fixed address instead of detecting the public IP")
	f.StringSliceVar(&cfg.Interfaces, "iface", nil, "read the address from a local interface instead of a web service")
	f.StringSliceVar(&cfg.ResolverURLs, "resolver-url", nil, "IP echo service URL (repeatable; default "+cfddns.DefaultIPEchoService+")")
	f.StringVar(&cfg.LockFile, "lock-file", "", "lock file serializing concurrent invocations")
	f.DurationVar(&cfg.Interval, "interval", 0, "re-run every interval instead of exiting (0 runs once)")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (interval mode only)")
}

func initConfig() {
	// .env support is for local development; absence is normal in production.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded configuration from .env file")
	}

	viper.SetEnvPrefix("DDNS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// DDNS_<FLAG> environment variables fill any flag not set explicitly.
	// Canonical variables like CLOUDFLARE_API_TOKEN and DDNS_ZONE_NAME are
	// merged later by config.Load.
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed && viper.IsSet(f.Name) {
			if err := rootCmd.Flags().Set(f.Name, fmt.Sprint(viper.Get(f.Name))); err != nil {
				log.Printf("warning: failed to set flag %s from environment: %v", f.Name, err)
			}
		}
	})
}
