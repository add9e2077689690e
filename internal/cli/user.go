package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/account"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage your account",
	}
	cmd.AddCommand(newUserRegisterCommand(rootOpts))
	cmd.AddCommand(newUserPasswdCommand(rootOpts))
	cmd.AddCommand(newUserRenameCommand(rootOpts))
	cmd.AddCommand(newUserProfileCommand(rootOpts))
	return cmd
}

func printProfile(out *OutputFormatter, p account.Profile) error {
	if out.Format == "json" {
		return out.Success(p)
	}
	_, err := fmt.Fprintf(out.Writer, "#%d %s <%s>\n", p.ID, p.FullName, p.Email)
	return err
}

func newUserRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	var r account.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Example: `  warranty user register --name "Ann Smith" --email ann@example.com --password s3cret!`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				p, err := app.Accounts.Register(ctx, r)
				if err != nil {
					return err
				}
				return printProfile(app.Out, p)
			})
		},
	}
	cmd.Flags().StringVar(&r.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&r.Email, "email", "", "email address")
	cmd.Flags().StringVar(&r.Password, "password", "", "password (at least 6 characters)")
	return cmd
}

func newUserPasswdCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds         credentials
		next, confirm string
	)
	cmd := &cobra.Command{
		Use:           "passwd",
		Short:         "Change your password",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				if err := app.Accounts.ChangePassword(ctx, id, creds.Password, next, confirm); err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]bool{"changed": true})
				}
				fmt.Fprintln(app.Out.Writer, "Password changed")
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&next, "new", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm", "", "new password again")
	return cmd
}

func newUserRenameCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds credentials
		name  string
	)
	cmd := &cobra.Command{
		Use:           "rename",
		Short:         "Change your display name",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				if err := app.Accounts.Rename(ctx, id, name); err != nil {
					return err
				}
				p, err := app.Accounts.Profile(ctx, id)
				if err != nil {
					return err
				}
				return printProfile(app.Out, p)
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&name, "name", "", "new full name")
	return cmd
}

func newUserProfileCommand(rootOpts *RootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:           "profile",
		Short:         "Show your profile",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				p, err := app.Accounts.Profile(ctx, id)
				if err != nil {
					return err
				}
				return printProfile(app.Out, p)
			})
		},
	}
	creds.bind(cmd)
	return cmd
}
