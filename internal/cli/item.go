package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/attach"
	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/page"
	"github.com/roach88/warranty/internal/warranty"
)

// NewItemCommand creates the item command group.
func NewItemCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "item",
		Short: "Manage your warranties",
	}
	cmd.AddCommand(newItemAddCommand(rootOpts))
	cmd.AddCommand(newItemEditCommand(rootOpts))
	cmd.AddCommand(newItemDeleteCommand(rootOpts))
	cmd.AddCommand(newItemListCommand(rootOpts))
	cmd.AddCommand(newItemShowCommand(rootOpts))
	cmd.AddCommand(newItemDedupeCommand(rootOpts))
	cmd.AddCommand(newItemExpiringCommand(rootOpts))
	return cmd
}

// itemFlags are the fields of a warranty entry.
type itemFlags struct {
	product, brand, purchase, unit, invoice string
	period                                  int
}

func (f *itemFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.product, "product", "", "product name")
	cmd.Flags().StringVar(&f.brand, "brand", "", "brand")
	cmd.Flags().StringVar(&f.purchase, "purchase-date", "", "purchase date (YYYY-MM-DD or DD-MM-YYYY)")
	cmd.Flags().IntVar(&f.period, "period", 0, "warranty period")
	cmd.Flags().StringVar(&f.unit, "unit", string(warranty.UnitYears), "period unit (years|months)")
	cmd.Flags().StringVar(&f.invoice, "invoice", "", "invoice file to attach (pdf, png, jpg, jpeg)")
}

func (f *itemFlags) input() warranty.Input {
	return warranty.Input{
		ProductName:  f.product,
		Brand:        f.brand,
		PurchaseDate: f.purchase,
		Period:       f.period,
		Unit:         warranty.Unit(f.unit),
	}
}

// withInvoice opens the invoice file, if any, for the duration of fn.
func (f *itemFlags) withInvoice(in warranty.Input, fn func(warranty.Input) error) error {
	if f.invoice == "" {
		return fn(in)
	}
	if err := attach.CheckFilename(f.invoice); err != nil {
		return apperr.Validation("item.invoice", "%s", err.Error())
	}
	file, err := os.Open(f.invoice)
	if err != nil {
		return apperr.Validation("item.invoice", "cannot read invoice %s", f.invoice)
	}
	defer file.Close()
	in.Invoice = &attach.Upload{Filename: filepath.Base(f.invoice), Body: file}
	return fn(in)
}

func printWarranty(out *OutputFormatter, w model.Warranty, verb string) error {
	if out.Format == "json" {
		return out.Success(w)
	}
	_, err := fmt.Fprintf(out.Writer, "%s warranty #%d: %s, expires %s\n",
		verb, w.ID, w.ProductName, dates.Display(w.ExpiryDate))
	return err
}

func newItemAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds credentials
		flags itemFlags
	)
	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add a warranty",
		Example:       `  warranty item add --email ann@example.com --password s3cret! --product Fridge --brand Acme --purchase-date 2024-01-15 --period 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				id, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				return flags.withInvoice(flags.input(), func(in warranty.Input) error {
					w, err := app.Warranties.Add(ctx, id, in)
					if err != nil {
						return err
					}
					return printWarranty(app.Out, w, "Added")
				})
			})
		},
	}
	creds.bind(cmd)
	flags.bind(cmd)
	return cmd
}

func newItemEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds credentials
		flags itemFlags
		id    int64
	)
	cmd := &cobra.Command{
		Use:           "edit",
		Short:         "Edit a warranty; omitted fields keep their current value",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				current, err := app.Warranties.Get(ctx, who, id)
				if err != nil {
					return err
				}

				in := flags.input()
				changed := cmd.Flags().Changed
				if !changed("product") {
					in.ProductName = current.ProductName
				}
				if !changed("brand") {
					in.Brand = current.Brand
				}
				if !changed("purchase-date") {
					in.PurchaseDate = dates.Format(current.PurchaseDate)
				}
				if !changed("period") {
					in.Period = current.PeriodMonths
					in.Unit = warranty.UnitMonths
				}

				return flags.withInvoice(in, func(in warranty.Input) error {
					w, err := app.Warranties.Edit(ctx, who, id, in)
					if err != nil {
						return err
					}
					return printWarranty(app.Out, w, "Updated")
				})
			})
		},
	}
	creds.bind(cmd)
	flags.bind(cmd)
	cmd.Flags().Int64Var(&id, "id", 0, "warranty id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newItemDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds credentials
		id    int64
	)
	cmd := &cobra.Command{
		Use:           "delete",
		Short:         "Delete a warranty and its claims and reminders",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				if err := app.Warranties.Delete(ctx, who, id); err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]int64{"deleted": id})
				}
				fmt.Fprintf(app.Out.Writer, "Deleted warranty #%d\n", id)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().Int64Var(&id, "id", 0, "warranty id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newItemListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds     credentials
		num, size int
	)
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List your warranties, soonest expiry first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				p, err := app.Warranties.List(ctx, who, page.New(num, size))
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(p)
				}
				if err := table(app.Out.Writer, itemHeader, itemRows(p.Items)); err != nil {
					return err
				}
				fmt.Fprintf(app.Out.Writer, "Page %d, %d of %d warranties\n", p.Page, len(p.Items), p.Total)
				return nil
			})
		},
	}
	creds.bind(cmd)
	bindPage(cmd, &num, &size)
	return cmd
}

func bindPage(cmd *cobra.Command, num, size *int) {
	cmd.Flags().IntVar(num, "page", 1, "page number")
	cmd.Flags().IntVar(size, "size", page.DefaultSize, "page size (5-100)")
}

func newItemShowCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds credentials
		id    int64
	)
	cmd := &cobra.Command{
		Use:           "show",
		Short:         "Show a warranty with its claims",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				d, err := app.Warranties.Get(ctx, who, id)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(d)
				}
				w := app.Out.Writer
				fmt.Fprintf(w, "#%d %s (%s)\n", d.ID, d.ProductName, dash(d.Brand))
				fmt.Fprintf(w, "Purchased: %s\n", dates.Display(d.PurchaseDate))
				fmt.Fprintf(w, "Expires:   %s (%s)\n", dates.Display(d.ExpiryDate), d.Status)
				fmt.Fprintf(w, "Period:    %d months\n", d.PeriodMonths)
				if d.InvoicePath != "" {
					fmt.Fprintf(w, "Invoice:   %s\n", d.InvoicePath)
				}
				if len(d.Claims) == 0 {
					return nil
				}
				fmt.Fprintln(w)
				return table(w, claimHeader, claimRows(d.Claims))
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().Int64Var(&id, "id", 0, "warranty id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newItemDedupeCommand(rootOpts *RootOptions) *cobra.Command {
	var creds credentials
	cmd := &cobra.Command{
		Use:           "dedupe",
		Short:         "Remove duplicate warranties, keeping the oldest of each",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				n, err := app.Warranties.Dedupe(ctx, who)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(map[string]int64{"removed": n})
				}
				fmt.Fprintf(app.Out.Writer, "Removed %d duplicate warranty record(s)\n", n)
				return nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newItemExpiringCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds credentials
		days  int
	)
	cmd := &cobra.Command{
		Use:           "expiring",
		Short:         "List warranties expiring soon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				who, err := creds.user(ctx, app)
				if err != nil {
					return err
				}
				items, err := app.Warranties.Expiring(ctx, who, days)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(items)
				}
				return table(app.Out.Writer, itemHeader, itemRows(items))
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().IntVar(&days, "days", warranty.DefaultExpiringDays, "days ahead")
	return cmd
}
