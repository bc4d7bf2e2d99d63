package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/engine"
)

// NewBatchCommand creates the batch command group.
func NewBatchCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Start, list and finish batches",
	}
	cmd.AddCommand(newBatchStartCommand(opts))
	cmd.AddCommand(newBatchListCommand(opts))
	cmd.AddCommand(newBatchStatusCommand(opts))
	cmd.AddCommand(newBatchDeleteCommand(opts))
	return cmd
}

type batchStartOptions struct {
	RecipeID int64
	Name     string
	Start    string
	Notes    string
}

func newBatchStartCommand(opts *RootOptions) *cobra.Command {
	bo := &batchStartOptions{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a batch and plan its alarms",
		Long: `Start a batch of a stored recipe.

One alarm is planned for every stage after the first and one for
filtering. Alarms whose time has already passed are stored as missed
and listed by "brewlog alarm missed".

Example:
  brewlog batch start --recipe 1 --name "Spring Samyangju"
  brewlog batch start --recipe 1 --name "Late" --start 2025-03-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var start time.Time
			if bo.Start != "" {
				t, err := parseTime(bo.Start, time.Now())
				if err != nil {
					return err
				}
				start = t
			}

			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				created, err := a.engine.CreateBatch(cmd.Context(), engine.NewBatch{
					RecipeID: bo.RecipeID,
					Name:     bo.Name,
					Start:    start,
					Notes:    bo.Notes,
				})
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(newCreatedBatchView(created))
			})
		},
	}

	cmd.Flags().Int64Var(&bo.RecipeID, "recipe", 0, "recipe id (required)")
	cmd.Flags().StringVar(&bo.Name, "name", "", "batch name (required)")
	cmd.Flags().StringVar(&bo.Start, "start", "", "start time (default now)")
	cmd.Flags().StringVar(&bo.Notes, "notes", "", "free-form notes")
	_ = cmd.MarkFlagRequired("recipe")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newBatchListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				batches, err := a.store.ListBatches(cmd.Context())
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(batchList(batches))
			})
		},
	}
}

func newBatchStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <batch-id> <FERMENTING|AGING|COMPLETE|FAILED>",
		Short: "Change a batch's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("batch", args[0])
			if err != nil {
				return err
			}
			status, err := brew.ParseBatchStatus(strings.ToUpper(args[1]))
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid status", err)
			}

			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				b, err := a.engine.UpdateBatchStatus(cmd.Context(), id, status)
				if err != nil {
					return err
				}
				return formatter(opts, cmd).Success(batchView{Batch: b})
			})
		},
	}
}

func newBatchDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <batch-id>",
		Short: "Delete a batch and all of its alarms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("batch", args[0])
			if err != nil {
				return err
			}
			return withApp(opts, cmd.OutOrStdout(), cmd.ErrOrStderr(), func(a *app) error {
				if err := a.engine.DeleteBatch(cmd.Context(), id); err != nil {
					return err
				}
				return formatter(opts, cmd).Success(deleted{Kind: "batch", ID: id})
			})
		},
	}
}
