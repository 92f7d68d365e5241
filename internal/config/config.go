// Package config merges CLI flags, environment variables, and the token file
// into the runtime configuration, with CLI > env > file precedence.
package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"cfddns"
)

// Environment variable names recognized by the updater.
const (
	EnvToken        = "CLOUDFLARE_API_TOKEN"
	EnvTokenFile    = "CLOUDFLARE_TOKEN_FILE"
	EnvZoneName     = "DDNS_ZONE_NAME"
	EnvDNSName      = "DDNS_DNS_NAME"
	EnvSMTPHost     = "DDNS_SMTP_HOST"
	EnvSMTPUsername = "DDNS_SMTP_USERNAME"
	EnvSMTPPassword = "DDNS_SMTP_PASSWORD"
	EnvDryRun       = "DDNS_DRY_RUN"
	EnvLogFile      = "DDNS_LOG_FILE"
	EnvLogLevel     = "DDNS_LOG_LEVEL"
	EnvLockFile     = "DDNS_LOCK_FILE"
	EnvMetricsAddr  = "DDNS_METRICS_ADDR"
	EnvResolverURL  = "DDNS_RESOLVER_URL"
)

// defaultTokenFile is the token file consulted when CLOUDFLARE_TOKEN_FILE is unset.
const defaultTokenFile = ".cloudflare_token"

// Config holds everything the updater needs for one invocation.
// It is assembled once at startup and not mutated afterwards.
type Config struct {
	Token        string
	Zone         string
	Name         string
	SMTPHost     string
	SMTPUsername string
	SMTPPassword string

	IP           string
	Interfaces   []string
	ResolverURLs []string

	DryRun      bool
	LogFile     string
	LogLevel    string
	LockFile    string
	MetricsAddr string
	Interval    time.Duration
}

// Load fills every field that was not set on the command line from the
// environment and, for the token, from the token file.
// Values already present are never overwritten.
func (c *Config) Load(logger *zap.Logger) error {
	if c.Zone == "" {
		c.Zone = os.Getenv(EnvZoneName)
	}
	if c.Name == "" {
		c.Name = os.Getenv(EnvDNSName)
	}
	if c.SMTPHost == "" {
		c.SMTPHost = os.Getenv(EnvSMTPHost)
	}
	if c.SMTPUsername == "" {
		c.SMTPUsername = os.Getenv(EnvSMTPUsername)
	}
	if c.SMTPPassword == "" {
		c.SMTPPassword = os.Getenv(EnvSMTPPassword)
	}
	if c.LogFile == "" {
		c.LogFile = os.Getenv(EnvLogFile)
	}
	if c.LockFile == "" {
		c.LockFile = os.Getenv(EnvLockFile)
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = os.Getenv(EnvMetricsAddr)
	}
	if len(c.ResolverURLs) == 0 {
		if urls := os.Getenv(EnvResolverURL); urls != "" {
			for _, u := range strings.Split(urls, ",") {
				if u = strings.TrimSpace(u); u != "" {
					c.ResolverURLs = append(c.ResolverURLs, u)
				}
			}
		}
	}

	if c.Token == "" {
		c.Token = os.Getenv(EnvToken)
	}
	if c.Token == "" {
		token, err := readTokenFile(TokenFilePath(), logger)
		if err != nil {
			logger.Debug("no token file available", zap.Error(err))
		}
		c.Token = token
	}
	return nil
}

// Validate reports the first missing required field.
func (c *Config) Validate() error {
	if c.Token == "" {
		return cfddns.ErrMissingToken
	}
	if c.Zone == "" {
		return cfddns.ErrMissingZone
	}
	if c.Name == "" {
		return cfddns.ErrMissingRecordName
	}
	return nil
}

// NotifyConfigured reports whether all three SMTP parameters are present.
// Notification is all-or-nothing; partial settings are ignored.
func (c *Config) NotifyConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUsername != "" && c.SMTPPassword != ""
}

// TokenFilePath returns the token file location:
// $CLOUDFLARE_TOKEN_FILE when set, otherwise ~/.cloudflare_token.
func TokenFilePath() string {
	if path := os.Getenv(EnvTokenFile); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultTokenFile
	}
	return filepath.Join(home, defaultTokenFile)
}

// DryRunFromEnv reads DDNS_DRY_RUN.
// Dry-run defaults to enabled and is only disabled by "0", "false", or "no"
// (case-insensitive), so an unconfigured deployment never mutates records.
func DryRunFromEnv() bool {
	v, ok := os.LookupEnv(EnvDryRun)
	if !ok {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "false", "no":
		return false
	}
	return true
}

// LogLevelFromEnv reads DDNS_LOG_LEVEL, defaulting to "info".
func LogLevelFromEnv() string {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		return lvl
	}
	return "info"
}

// readTokenFile reads the first line of the token file, trimmed.
// A token file that is readable by other users gets a warning but still works;
// some secret managers mount files with modes we don't control.
func readTokenFile(path string, logger *zap.Logger) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening token file: %w", err)
	}
	defer f.Close()

	warnOnPermissions(path, logger)

	line, err := bufio.NewReader(f).ReadString('\n')
	token := strings.TrimSpace(line)
	if token == "" {
		if err != nil {
			return "", fmt.Errorf("error reading token file %s: %w", path, err)
		}
		return "", fmt.Errorf("token file %s is empty", path)
	}
	return token, nil
}

func warnOnPermissions(path string, logger *zap.Logger) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	perms := info.Mode().Perm()
	// 0400 is accepted alongside 0600 because read-only mounts are common.
	if perms != 0600 && perms != 0400 {
		logger.Warn("token file permissions are too open",
			zap.String("path", path),
			zap.String("mode", fs.FileMode(perms).String()),
			zap.String("want", "-rw-------"))
	}
}
