package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/account"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/report"
)

// NewAdminCommand creates the admin command group.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrator tools",
		Long: `Administrator tools.

Every subcommand except seed authenticates with --email/--password against
the administrator accounts. seed creates the default administrator when none
exists and requires --token to match the configured secret key.`,
	}
	cmd.AddCommand(newAdminSeedCommand(rootOpts))
	cmd.AddCommand(newAdminStatsCommand(rootOpts))
	cmd.AddCommand(newAdminReportCommand(rootOpts))
	cmd.AddCommand(newAdminUsersCommand(rootOpts))
	cmd.AddCommand(newAdminItemsCommand(rootOpts))
	cmd.AddCommand(newAdminClaimsCommand(rootOpts))
	return cmd
}

func newAdminSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Create the default administrator",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				created, err := app.Accounts.SeedAdmin(ctx, token)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]any{"created": created, "email": account.DefaultAdminEmail})
				}
				if !created {
					fmt.Fprintln(app.Out.Writer, "An administrator already exists")
					return nil
				}
				fmt.Fprintf(app.Out.Writer, "Created administrator %s; change its password\n", account.DefaultAdminEmail)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "the configured secret key")
	return cmd
}

// adminCommand builds a subcommand whose body runs with an authenticated
// administrator.
func adminCommand(rootOpts *RootOptions, use, short string, body func(ctx context.Context, app *App, admin model.AdminIdentity) error) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				admin, err := creds.admin(ctx, app)
				if err != nil {
					return err
				}
				return body(ctx, app, admin)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newAdminStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := adminCommand(rootOpts, "stats", "Show dashboard counters",
		func(ctx context.Context, app *App, admin model.AdminIdentity) error {
			d, err := app.Reports.Dashboard(ctx, admin)
			if err != nil {
				return err
			}
			if app.Out.Format == "json" {
				return app.Out.Success(d)
			}
			return table(app.Out.Writer, []string{"USERS", "WARRANTIES", "EXPIRING (30D)", "PENDING CLAIMS"}, [][]string{{
				fmt.Sprint(d.Users), fmt.Sprint(d.Warranties), fmt.Sprint(d.ExpiringSoon), fmt.Sprint(d.PendingClaims),
			}})
		})
	return cmd
}

func newAdminReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := adminCommand(rootOpts, "report", "Show expired, upcoming and claim totals",
		func(ctx context.Context, app *App, admin model.AdminIdentity) error {
			r, err := app.Reports.Report(ctx, admin)
			if err != nil {
				return err
			}
			if app.Out.Format == "json" {
				return app.Out.Success(r)
			}
			return report.WriteText(app.Out.Writer, r)
		})
	return cmd
}

func newAdminUsersCommand(rootOpts *RootOptions) *cobra.Command {
	var num, size int
	cmd := adminCommand(rootOpts, "users", "List users",
		func(ctx context.Context, app *App, admin model.AdminIdentity) error {
			users, err := app.Accounts.ListUsers(ctx, admin, page.New(num, size))
			if err != nil {
				return err
			}
			if app.Out.Format == "json" {
				return app.Out.Success(users)
			}
			rows := make([][]string, 0, len(users))
			for _, u := range users {
				rows = append(rows, []string{fmt.Sprint(u.ID), u.FullName, u.Email})
			}
			return table(app.Out.Writer, []string{"ID", "NAME", "EMAIL"}, rows)
		})
	bindPage(cmd, &num, &size)
	return cmd
}

func newAdminItemsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		q, status string
		num, size int
	)
	cmd := adminCommand(rootOpts, "items", "Search warranties across users",
		func(ctx context.Context, app *App, admin model.AdminIdentity) error {
			rows, err := app.Reports.Warranties(ctx, admin, q, status, page.New(num, size))
			if err != nil {
				return err
			}
			if app.Out.Format == "json" {
				return app.Out.Success(rows)
			}
			out := make([][]string, 0, len(rows))
			for _, l := range rows {
				out = append(out, []string{
					fmt.Sprint(l.WarrantyID), l.UserName, l.ProductName, dash(l.Brand),
					dates.Format(l.PurchaseDate), dates.Format(l.ExpiryDate), l.Status,
				})
			}
			return table(app.Out.Writer, []string{"ID", "OWNER", "PRODUCT", "BRAND", "PURCHASED", "EXPIRES", "STATUS"}, out)
		})
	cmd.Flags().StringVar(&q, "q", "", "match product, brand or owner name")
	cmd.Flags().StringVar(&status, "status", "", "Active or Expired")
	bindPage(cmd, &num, &size)
	return cmd
}

func newAdminClaimsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		status    string
		num, size int
	)
	cmd := adminCommand(rootOpts, "claims", "List claims across users",
		func(ctx context.Context, app *App, admin model.AdminIdentity) error {
			claims, err := app.Claims.ListAll(ctx, admin, model.ClaimStatus(status), page.New(num, size))
			if err != nil {
				return err
			}
			if app.Out.Format == "json" {
				return app.Out.Success(claims)
			}
			rows := make([][]string, 0, len(claims))
			for _, c := range claims {
				rows = append(rows, []string{
					fmt.Sprint(c.ID), dash(c.UserName), dash(c.ProductName),
					dates.Format(c.ClaimDate), string(c.Status), c.Description,
				})
			}
			return table(app.Out.Writer, []string{"ID", "OWNER", "PRODUCT", "DATE", "STATUS", "DESCRIPTION"}, rows)
		})
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	bindPage(cmd, &num, &size)
	return cmd
}
