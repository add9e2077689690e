package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/notify"
)

// NewNotifyCommand creates the notify command group.
func NewNotifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run and inspect expiry reminders",
	}
	cmd.AddCommand(newNotifyRunCommand(rootOpts))
	cmd.AddCommand(newNotifyGenerateCommand(rootOpts))
	cmd.AddCommand(newNotifyListCommand(rootOpts))
	cmd.AddCommand(newNotifyReadCommand(rootOpts))
	return cmd
}

func newNotifyRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reminder pass over all users",
		Long: `Run one reminder pass over all users, as the scheduler does.

Daily reminders go out for warranties expiring within 7 days and for 7 days
after expiry; weekly reminders on the configured weekday for warranties
expiring in 8 to 30 days. Running the pass twice on the same day records
nothing new.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				report, err := app.Notifier.RunBatch(ctx)
				if outErr := printBatch(app.Out, report); outErr != nil {
					return outErr
				}
				return err
			})
		},
	}
}

func printBatch(out *OutputFormatter, r notify.BatchReport) error {
	if out.Format == "json" {
		return out.Success(r)
	}
	_, err := fmt.Fprintf(out.Writer, "Reminder pass for %s: scanned %d, eligible %d, recorded %d, delivered %d, failed %d\n",
		r.Date, r.Scanned, r.Eligible, r.Inserted, r.Delivered, r.Failed)
	return err
}

func newNotifyGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds     credentials
		lookahead int
		deliver   bool
	)
	cmd := &cobra.Command{
		Use:           "generate",
		Short:         "Record reminders for your own warranties",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("lookahead") {
					lookahead = app.Config.Notify.LookaheadDays
				}
				r, err := app.Notifier.GenerateForUser(ctx, id.UserID, lookahead, deliver)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(r)
				}
				fmt.Fprintf(app.Out.Writer, "Eligible %d, recorded %d, delivered %d\n", r.Eligible, r.Inserted, r.Delivered)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().IntVar(&lookahead, "lookahead", notify.DefaultLookahead, "days ahead to include (default: notify.lookahead_days)")
	cmd.Flags().BoolVar(&deliver, "deliver", false, "mail newly recorded reminders")
	return cmd
}

func newNotifyListCommand(rootOpts *RootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List your reminders",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				notes, err := app.Notifier.List(ctx, id.UserID)
				if err != nil {
					return err
				}
				unread, err := app.Notifier.UnreadCount(ctx, id.UserID)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]any{"unread": unread, "notifications": notes})
				}
				fmt.Fprintf(app.Out.Writer, "%d unread\n", unread)
				rows := make([][]string, 0, len(notes))
				for _, n := range notes {
					rows = append(rows, []string{dates.Format(n.CreatedAt), string(n.Status), n.Message})
				}
				return table(app.Out.Writer, []string{"DATE", "STATUS", "MESSAGE"}, rows)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newNotifyReadCommand(rootOpts *RootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:           "read",
		Short:         "Mark all your reminders as read",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				n, err := app.Notifier.MarkAllRead(ctx, id.UserID)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]int64{"marked": n})
				}
				fmt.Fprintf(app.Out.Writer, "Marked %d reminder(s) as read\n", n)
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}
