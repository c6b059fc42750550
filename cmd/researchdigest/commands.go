package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ResearchDigest/internal/app"
	"ResearchDigest/internal/config"
	"ResearchDigest/internal/domain"
	"ResearchDigest/internal/logging"
)

type runtime struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	rt := &runtime{}
	root := &cobra.Command{
		Use:   "researchdigest",
		Short: "Research digest agent for autonomous driving and in-car AI",
		Long: `researchdigest answers domain questions from live sources and mails a daily digest.

Example usage:
  researchdigest serve                       # HTTP API and cron scheduler
  researchdigest ask "What is BEVFormer?"    # deep research answer
  researchdigest ask --quick "What is ADAS?" # low-latency answer
  researchdigest ingest                      # refresh the store once
  researchdigest digest                      # ingest and mail the digest once
  researchdigest schema                      # create tables and indexes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			rt.cfg = config.Load()
			rt.logger = logging.New(rt.cfg.Logging.Level, rt.cfg.Logging.Format)
			return nil
		},
	}

	root.AddCommand(
		rt.serveCmd(),
		rt.askCmd(),
		rt.ingestCmd(),
		rt.digestCmd(),
		rt.schemaCmd(),
	)
	return root
}

func (rt *runtime) withApp(fn func(ctx context.Context, a *app.Application) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := app.New(ctx, rt.cfg, rt.logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func (rt *runtime) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func (rt *runtime) askCmd() *cobra.Command {
	var quick bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question with cited references",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.cfg.LLMCredential(); err != nil {
				return err
			}
			mode := domain.ModeDeep
			if quick {
				mode = domain.ModeQuick
			}
			question := strings.Join(args, " ")
			return rt.withApp(func(ctx context.Context, a *app.Application) error {
				answer, err := a.Ask(ctx, question, mode)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, answer.Text)
				if len(answer.References) > 0 {
					fmt.Fprintln(out)
					for i, ref := range answer.References {
						fmt.Fprintf(out, "%d. %s %s\n", i+1, ref.Title, ref.URL)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&quick, "quick", "q", false, "use the low-latency mode")
	return cmd
}

func (rt *runtime) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Fetch every configured site into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(func(ctx context.Context, a *app.Application) error {
				stats, err := a.Ingest(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, stats)
			})
		},
	}
}

func (rt *runtime) digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Ingest and mail the daily digest once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.cfg.MailCredentials(); err != nil {
				return err
			}
			return rt.withApp(func(ctx context.Context, a *app.Application) error {
				report, err := a.SendDigest(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
}

func (rt *runtime) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create tables and the full-text index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withApp(func(ctx context.Context, a *app.Application) error {
				if err := a.EnsureSchema(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
				return nil
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
