package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cfddns"
	"cfddns/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Verify a Cloudflare API token and store it in the token file",
	Long: `setup prompts for a Cloudflare API token with terminal echo disabled,
verifies it against the Cloudflare API, and writes it to the token file
(` + "$CLOUDFLARE_TOKEN_FILE or ~/.cloudflare_token" + `) with mode 0600.

An existing token file is never overwritten.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	fmt.Fprint(os.Stderr, "Enter Cloudflare API token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("error reading token from stdin: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return cfddns.ErrMissingToken
	}

	api, err := cloudflare.NewWithAPIToken(token)
	if err != nil {
		return fmt.Errorf("error creating api client: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()
	result, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("unable to verify api token: %w", err)
	}
	if result.Status != "active" {
		return fmt.Errorf("expected api token status to be %q; got %q", "active", result.Status)
	}

	path := config.TokenFilePath()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", path, err)
	}
	defer f.Close()
	fmt.Fprintln(f, token)
	fmt.Fprintf(os.Stderr, "token written to %s\n", path)
	return nil
}
