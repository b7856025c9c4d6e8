package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/container"
	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/services"
)

const appTimeout = 30 * time.Second

// ctlDeps are the services an operator command may drive
type ctlDeps struct {
	fx.In

	Ingestion  *services.IngestionService
	Profiles   *services.MappingProfileService
	Dispatcher *services.OutboxDispatcher
	Sweeper    *services.RetentionSweeper
}

// withApp starts the core container, runs fn and stops the container.
// extra options let tests replace the configuration.
func withApp(ctx context.Context, extra []fx.Option, fn func(ctx context.Context, deps ctlDeps) error) error {
	var deps ctlDeps
	opts := append([]fx.Option{
		container.CoreModule,
		fx.NopLogger,
		fx.Invoke(func(d ctlDeps) { deps = d }),
	}, extra...)

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	startCtx, cancel := context.WithTimeout(ctx, appTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), appTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, deps)
}

func newRootCmd(extra []fx.Option) *cobra.Command {
	root := &cobra.Command{
		Use:           "ingestctl",
		Short:         "Operate audience ingestion runs and the integration outbox",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIngestCmd(extra),
		newReplayCmd(extra),
		newRejectionsCmd(extra),
		newDispatchCmd(extra),
		newSweepCmd(extra),
	)
	return root
}

func newIngestCmd(extra []fx.Option) *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run an ingestion from a JSON request file",
		Long: "Reads an ingestion request ({tenant_id, source_type, source_config, mapping_profile_id, dry_run})\n" +
			"from --file, or stdin when --file is -, and prints the run summary.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readIngestRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				req.DryRun = dryRun
			}

			return withApp(cmd.Context(), extra, func(ctx context.Context, deps ctlDeps) error {
				result, err := deps.Ingestion.Ingest(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the JSON ingestion request, - for stdin (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate without writing canonical data or outbox events")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newReplayCmd(extra []fx.Option) *cobra.Command {
	var (
		tenant string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Replay a stored run from its snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.ReplayRequest{TenantID: tenant, RunID: args[0]}
			if cmd.Flags().Changed("dry-run") {
				req.DryRun = &dryRun
			}

			return withApp(cmd.Context(), extra, func(ctx context.Context, deps ctlDeps) error {
				result, err := deps.Ingestion.Replay(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Tenant owning the run (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Override the dry-run flag of the original run")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func newRejectionsCmd(extra []fx.Option) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "rejections <run-id>",
		Short: "List the rejected rows of a run in row order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), extra, func(ctx context.Context, deps ctlDeps) error {
				result, err := deps.Ingestion.ListRejections(ctx, args[0], page, pageSize)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "Rejections per page")

	return cmd
}

func newDispatchCmd(extra []fx.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run one outbox dispatch pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), extra, func(ctx context.Context, deps ctlDeps) error {
				report, err := deps.Dispatcher.DispatchOnce(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func newSweepCmd(extra []fx.Option) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), extra, func(ctx context.Context, deps ctlDeps) error {
				report, err := deps.Sweeper.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func readIngestRequest(stdin io.Reader, file string) (services.IngestRequest, error) {
	var req services.IngestRequest

	var (
		data []byte
		err  error
	)
	if strings.TrimSpace(file) == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return req, fmt.Errorf("failed to read ingestion request: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&req); err != nil {
		return req, fmt.Errorf("invalid ingestion request: %w", err)
	}
	return req, nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
