package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/warranty/internal/dates"
	"github.com/roach88/warranty/internal/model"
	"github.com/roach88/warranty/internal/warranty"
)

// table writes tab-aligned rows under an upper-case header.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func itemRows(items []warranty.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			fmt.Sprint(it.ID),
			it.ProductName,
			dash(it.Brand),
			dates.Format(it.PurchaseDate),
			dates.Format(it.ExpiryDate),
			it.Status,
		})
	}
	return rows
}

var itemHeader = []string{"ID", "PRODUCT", "BRAND", "PURCHASED", "EXPIRES", "STATUS"}

func claimRows(claims []model.Claim) [][]string {
	rows := make([][]string, 0, len(claims))
	for _, c := range claims {
		rows = append(rows, []string{
			fmt.Sprint(c.ID),
			fmt.Sprint(c.WarrantyID),
			dash(c.ProductName),
			dates.Format(c.ClaimDate),
			string(c.Status),
			c.Description,
		})
	}
	return rows
}

var claimHeader = []string{"ID", "WARRANTY", "PRODUCT", "DATE", "STATUS", "DESCRIPTION"}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
