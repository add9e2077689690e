package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/model"
)

// NewClaimCommand creates the claim command group.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim",
		Short: "File and track service claims",
	}
	cmd.AddCommand(newClaimSubmitCommand(rootOpts))
	cmd.AddCommand(newClaimListCommand(rootOpts))
	cmd.AddCommand(newClaimStatusCommand(rootOpts))
	return cmd
}

func newClaimSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds       credentials
		warrantyID  int64
		description string
	)
	cmd := &cobra.Command{
		Use:           "submit",
		Short:         "File a claim against one of your warranties",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				c, err := app.Claims.Submit(ctx, who, warrantyID, description)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(c)
				}
				fmt.Fprintf(app.Out.Writer, "Filed claim #%d on warranty #%d (%s)\n", c.ID, c.WarrantyID, c.Status)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().Int64Var(&warrantyID, "warranty", 0, "warranty id")
	cmd.Flags().StringVar(&description, "description", "", "what went wrong")
	return cmd
}

func newClaimListCommand(rootOpts *RootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List your claims, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				claims, err := app.Claims.ListForUser(ctx, who)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(claims)
				}
				return table(app.Out.Writer, claimHeader, claimRows(claims))
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newClaimStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds   credentials
		claimID int64
		status  string
	)
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Set a claim's status (administrators)",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				admin, err := creds.admin(ctx, app)
				if err != nil {
					return err
				}
				if err := app.Claims.UpdateStatus(ctx, admin, claimID, model.ClaimStatus(status)); err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]any{"id": claimID, "status": status})
				}
				fmt.Fprintf(app.Out.Writer, "Claim #%d is now %s\n", claimID, status)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().Int64Var(&claimID, "id", 0, "claim id")
	cmd.Flags().StringVar(&status, "status", "", "Pending, In Progress, Completed or Denied")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}
