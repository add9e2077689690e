package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warranty/internal/page"
)

// NewProductCommand creates the product catalog command group.
// Both subcommands require administrator credentials.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage the product catalog (administrators)",
	}
	cmd.AddCommand(newProductAddCommand(rootOpts))
	cmd.AddCommand(newProductListCommand(rootOpts))
	return cmd
}

func newProductAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds                 credentials
		brand, name, category string
	)
	cmd := &cobra.Command{
		Use:           "add",
		Short:         "Add or verify a catalog product",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				if _, err := creds.admin(ctx, app); err != nil {
					return err
				}
				p, err := app.Catalog.AddVerified(ctx, brand, name, category)
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(p)
				}
				fmt.Fprintf(app.Out.Writer, "Product #%d: %s %s\n", p.ID, p.Brand, p.ModelName)
				return nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&brand, "brand", "", "brand")
	cmd.Flags().StringVar(&name, "model", "", "model name")
	cmd.Flags().StringVar(&category, "category", "", "category")
	return cmd
}

func newProductListCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		creds     credentials
		q         string
		num, size int
	)
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List catalog products",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, func(ctx context.Context, app *App) error {
				if _, err := creds.admin(ctx, app); err != nil {
					return err
				}
				products, err := app.Catalog.List(ctx, q, page.New(num, size))
				if err != nil {
					return err
				}
				if app.Out.Format == "json" {
					return app.Out.Success(products)
				}
				rows := make([][]string, 0, len(products))
				for _, p := range products {
					verified := "no"
					if p.Verified {
						verified = "yes"
					}
					rows = append(rows, []string{fmt.Sprint(p.ID), p.Brand, p.ModelName, dash(p.Category), verified})
				}
				return table(app.Out.Writer, []string{"ID", "BRAND", "MODEL", "CATEGORY", "VERIFIED"}, rows)
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&q, "q", "", "filter by brand, model or category")
	bindPage(cmd, &num, &size)
	return cmd
}
