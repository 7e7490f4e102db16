package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jmerrifield20/blockledger/internal/auth"
	"github.com/jmerrifield20/blockledger/internal/chain"
	"github.com/jmerrifield20/blockledger/internal/config"
	"github.com/jmerrifield20/blockledger/internal/shell"
	"github.com/jmerrifield20/blockledger/pkg/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile   string
	serverURL string
	token     string
	format    string
	cfg       *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Hash-chained ledger CLI",
		Long: `ledger maintains an append-only chain of blocks, each bound to its
predecessor by a content digest.

Run without a subcommand (or with 'shell') to drive an in-memory ledger
interactively. The remaining subcommands talk to a running ledgerd.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.New(), c.cfgFile)
			if err != nil {
				return err
			}
			c.cfg = cfg
			if c.serverURL == "" {
				c.serverURL = cfg.Client.Server
			}
			if c.token == "" {
				c.token = cfg.Client.Token
			}
			return nil
		},
		RunE: c.runShell,
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./configs/ledger.yaml or ./ledger.yaml)")
	root.PersistentFlags().StringVar(&c.serverURL, "server", "", "ledgerd base URL (default http://localhost:8080)")
	root.PersistentFlags().StringVar(&c.token, "token", "", "writer token for appends")
	root.PersistentFlags().StringVar(&c.format, "format", "text", "Output format: text or json")

	root.AddCommand(
		&cobra.Command{
			Use:   "shell",
			Short: "Drive an in-memory ledger interactively",
			Args:  cobra.NoArgs,
			RunE:  c.runShell,
		},
		&cobra.Command{
			Use:   "append <payload>",
			Short: "Append a block carrying an integer payload",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runAppend,
		},
		&cobra.Command{
			Use:   "head",
			Short: "Print the ledger length and head digest",
			Args:  cobra.NoArgs,
			RunE:  c.runHead,
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Ask ledgerd to verify its chain",
			Args:  cobra.NoArgs,
			RunE:  c.runVerify,
		},
		&cobra.Command{
			Use:   "block <index>",
			Short: "Print one block",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runBlock,
		},
		c.blocksCmd(),
		c.tokenCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the ledger CLI version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ledger %s\n", version)
			},
		},
	)
	return root
}

// ── shell ────────────────────────────────────────────────────────────────────

func (c *cli) runShell(cmd *cobra.Command, _ []string) error {
	opts, err := c.cfg.LedgerOptions()
	if err != nil {
		return err
	}
	logger, err := c.cfg.NewLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := chain.New(opts...)
	logger.Debug("shell started",
		zap.String("algorithm", string(l.Engine().Algorithm())),
		zap.String("link_mode", string(l.LinkMode())),
	)
	return shell.New(l, cmd.InOrStdin(), cmd.OutOrStdout(), logger).Run(ctx)
}

// ── remote ───────────────────────────────────────────────────────────────────

func (c *cli) client() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(c.cfg.Client.Timeout)}
	if c.token != "" {
		opts = append(opts, client.WithBearerToken(c.token))
	}
	return client.New(c.serverURL, opts...)
}

func (c *cli) runAppend(cmd *cobra.Command, args []string) error {
	payload, err := chain.ParsePayload(args[0])
	if err != nil {
		return err
	}
	cl, err := c.client()
	if err != nil {
		return err
	}

	res, err := cl.Append(cmd.Context(), payload)
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			return fmt.Errorf("append: %w (pass --token or set client.token)", err)
		}
		return fmt.Errorf("append: %w", err)
	}

	if c.format == "json" {
		return printJSON(cmd.OutOrStdout(), res)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Block %d added to the ledger.\n", res.Index)
	fmt.Fprintf(out, "Previous block digest: %s\n", res.Previous)
	fmt.Fprintf(out, "Current block digest:  %s\n", res.Digest)
	return nil
}

func (c *cli) runHead(cmd *cobra.Command, _ []string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	ov, err := cl.Overview(cmd.Context())
	if err != nil {
		return fmt.Errorf("overview: %w", err)
	}

	if c.format == "json" {
		return printJSON(cmd.OutOrStdout(), ov)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Ledger:\t%s\n", ov.LedgerID)
	fmt.Fprintf(w, "Blocks:\t%d\n", ov.Length)
	fmt.Fprintf(w, "Head:\t%s\n", ov.Head)
	fmt.Fprintf(w, "Digest:\t%s (%s)\n", ov.Algorithm, ov.LinkMode)
	return w.Flush()
}

func (c *cli) runVerify(cmd *cobra.Command, _ []string) error {
	cl, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.Verify(cmd.Context())
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if c.format == "json" {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else if res.Valid {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Ledger intact")
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "✗ Ledger integrity violation: %s\n", res.Error)
	}
	if !res.Valid {
		return errors.New("ledger failed verification")
	}
	return nil
}

func (c *cli) runBlock(cmd *cobra.Command, args []string) error {
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 0 {
		return fmt.Errorf("index %q must be a non-negative integer", args[0])
	}
	cl, err := c.client()
	if err != nil {
		return err
	}
	b, err := cl.Block(cmd.Context(), idx)
	if err != nil {
		return fmt.Errorf("block %d: %w", idx, err)
	}

	if c.format == "json" {
		return printJSON(cmd.OutOrStdout(), b)
	}
	return printBlocks(cmd.OutOrStdout(), idx, []client.Block{*b})
}

func (c *cli) blocksCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "List blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			page, err := cl.Blocks(cmd.Context(), offset, limit)
			if err != nil {
				return fmt.Errorf("list blocks: %w", err)
			}
			if c.format == "json" {
				return printJSON(cmd.OutOrStdout(), page)
			}
			if err := printBlocks(cmd.OutOrStdout(), page.Offset, page.Blocks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d blocks\n", len(page.Blocks), page.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Index of the first block")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of blocks")
	return cmd
}

// ── token ────────────────────────────────────────────────────────────────────

func (c *cli) tokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a writer token signed with server.auth_secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if ttl == 0 {
				ttl = c.cfg.Server.TokenTTL
			}
			ti, err := auth.NewTokenIssuer(c.cfg.Server.AuthSecret, ttl)
			if err != nil {
				return fmt.Errorf("token: %w (set server.auth_secret or SERVER_AUTH_SECRET)", err)
			}
			token, err := ti.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default server.token_ttl)")
	return cmd
}

// ── output ───────────────────────────────────────────────────────────────────

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printBlocks(out io.Writer, first int, blocks []client.Block) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTIMESTAMP\tPAYLOAD\tPREVIOUS\tDIGEST")
	for i, b := range blocks {
		prev := b.PreviousDigest
		if prev == "" {
			prev = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			first+i,
			time.Unix(b.Content.Timestamp, 0).UTC().Format(time.RFC3339),
			b.Content.Payload, prev, b.Digest,
		)
	}
	return w.Flush()
}

