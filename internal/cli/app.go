package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/account"
	"github.com/roach88/warranty/internal/attach"
	"github.com/roach88/warranty/internal/catalog"
	"github.com/roach88/warranty/internal/claim"
	"github.com/roach88/warranty/internal/clock"
	"github.com/roach88/warranty/internal/config"
	"github.com/roach88/warranty/internal/mail"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/notify"
	"github.com/roach88/warranty/internal/report"
	"github.com/roach88/warranty/internal/store"
	"github.com/roach88/warranty/internal/warranty"
)

// App wires the services of one CLI invocation against one open store.
type App struct {
	Config config.Config
	Logger *slog.Logger
	Out    *OutputFormatter
	Store  *store.Store

	Accounts   *account.Service
	Catalog    *catalog.Service
	Warranties *warranty.Service
	Claims     *claim.Service
	Reports    *report.Service
	Notifier   *notify.Engine
}

// openApp loads configuration, opens the database, and builds every service.
// The caller must Close the returned App.
func openApp(opts *RootOptions, cmd *cobra.Command) (*App, error) {
	cfg, err := config.Load(config.Options{File: opts.ConfigFile, EnvDir: opts.EnvDir})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	logger := cfg.Logger(out.GetErrWriter(), opts.Verbose)

	logger.Debug("opening database", "path", cfg.Database.Path)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	files, err := attach.NewDirStore(cfg.Uploads.Dir)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to prepare upload folder", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	sink := opts.Sink
	if sink == nil {
		timeout, _ := cfg.SMTPTimeout()
		sink = mail.NewSMTPSink(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  timeout,
		}, logger)
	}

	accountOpts := []account.Option{account.WithSecretKey(cfg.SecretKey)}
	if opts.BcryptCost > 0 {
		accountOpts = append(accountOpts, account.WithCost(opts.BcryptCost))
	}

	cat := catalog.NewService(st, logger)
	return &App{
		Config:     cfg,
		Logger:     logger,
		Out:        out,
		Store:      st,
		Accounts:   account.NewService(st, clk, logger, accountOpts...),
		Catalog:    cat,
		Warranties: warranty.NewService(st, cat, files, clk, logger),
		Claims:     claim.NewService(st, clk, logger),
		Reports:    report.NewService(st, clk, logger),
		Notifier: notify.NewEngine(st, sink, clk, logger,
			notify.WithWeeklyDay(cfg.WeeklyDay()),
			notify.WithWorkers(cfg.Notify.Workers),
		),
	}, nil
}

// Close releases the database.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("error closing database", "error", err)
	}
}

// runApp opens an App, runs fn, and reports any domain error through the
// formatter.
func runApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	app, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, app); err != nil {
		return app.fail(err)
	}
	return nil
}

func (a *App) fail(err error) error {
	out := a.Out.Fail(err)
	if GetExitCode(out) == ExitCommandError {
		a.Logger.Error("command failed", "error", err)
	}
	return out
}

// credentials are the --email/--password flags of an authenticated command.
type credentials struct {
	Email    string
	Password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&c.Email, "email", "", "account email")
	cmd.PersistentFlags().StringVar(&c.Password, "password", "", "account password")
}

func (c *credentials) user(ctx context.Context, app *App) (model.Identity, error) {
	return app.Accounts.Authenticate(ctx, c.Email, c.Password)
}

func (c *credentials) admin(ctx context.Context, app *App) (model.AdminIdentity, error) {
	return app.Accounts.AuthenticateAdmin(ctx, c.Email, c.Password)
}
