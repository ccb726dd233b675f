package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"storefront-agent/internal/app"
	"storefront-agent/internal/core"

	"github.com/shopspring/decimal"
)

// Usage lists the one-shot commands.
const Usage = `Usage: app <command> [args]

  quote    <store> <province> <city> <subtotal>   list shipping options
  parse    <store> <documents.json|->             parse OCR output into transactions
  upload   <store> <file>...                      OCR and parse receipt files
  transfer <store> <transactions.json|->          post transactions to the books
  stats    <store>                                show bookkeeper usage
  balances <store>                                show account balances per book
  forecast <store> <product> [horizon-days]       show a product forecast
`

// Run executes a one-shot CLI command, writing its output to out.
// args is os.Args[1:]; the first element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", Usage)
	}

	switch args[0] {
	case "quote", "q":
		if len(args) < 5 {
			return fmt.Errorf("usage: app quote <store> <province> <city> <subtotal>")
		}
		subtotal, err := decimal.NewFromString(args[4])
		if err != nil {
			return fmt.Errorf("invalid subtotal %q: %w", args[4], err)
		}
		res, err := svc.QuoteShipping(ctx, app.QuoteShippingRequest{
			StoreID:  args[1],
			Province: args[2],
			City:     args[3],
			Subtotal: subtotal,
		})
		if err != nil {
			return fmt.Errorf("quote failed: %w", err)
		}
		printQuote(out, res)

	case "parse":
		if len(args) < 3 {
			return fmt.Errorf("usage: app parse <store> <documents.json|->")
		}
		var docs map[string]core.OCRDocument
		if err := readJSON(args[2], &docs); err != nil {
			return err
		}
		res, err := svc.ParseDocuments(ctx, args[1], docs)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		printTransactions(out, res)

	case "upload":
		if len(args) < 3 {
			return fmt.Errorf("usage: app upload <store> <file>...")
		}
		files := make([]core.UploadFile, 0, len(args)-2)
		for _, p := range args[2:] {
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			files = append(files, core.UploadFile{Name: filepath.Base(p), Content: data})
		}
		res, err := svc.UploadDocuments(ctx, args[1], files, func(p core.UploadProgress) {
			fmt.Fprintf(out, "[%d/%d] %s: %s\n", p.Index, p.Total, p.File, p.Status)
		})
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		printTransactions(out, res)

	case "transfer":
		if len(args) < 3 {
			return fmt.Errorf("usage: app transfer <store> <transactions.json|->")
		}
		var txs []core.Transaction
		if err := readJSON(args[2], &txs); err != nil {
			return err
		}
		res, err := svc.TransferTransactions(ctx, args[1], txs, func(p core.TransferProgress) {
			mark := "posted"
			if p.Skipped {
				mark = "skipped"
			}
			fmt.Fprintf(out, "[%d/%d] %s → %s %s\n", p.Done, p.Total, p.TransactionID, p.Book, mark)
		})
		if res != nil {
			fmt.Fprintf(out, "Posted %d, skipped %d of %d entries.\n", res.Report.Posted, res.Report.Skipped, res.Report.Total)
		}
		if err != nil {
			return fmt.Errorf("transfer failed: %w", err)
		}

	case "stats":
		if len(args) < 2 {
			return fmt.Errorf("usage: app stats <store>")
		}
		st, err := svc.GetBookkeeperStats(ctx, args[1])
		if err != nil {
			return fmt.Errorf("stats failed: %w", err)
		}
		printStats(out, args[1], st)

	case "balances":
		if len(args) < 2 {
			return fmt.Errorf("usage: app balances <store>")
		}
		res, err := svc.GetBookBalances(ctx, args[1])
		if err != nil {
			return fmt.Errorf("balances failed: %w", err)
		}
		printBalances(out, res)

	case "forecast":
		if len(args) < 3 {
			return fmt.Errorf("usage: app forecast <store> <product> [horizon-days]")
		}
		horizon := 0
		if len(args) > 3 {
			n, err := strconv.Atoi(args[3])
			if err != nil {
				return fmt.Errorf("invalid horizon %q: %w", args[3], err)
			}
			horizon = n
		}
		f, err := svc.GetProductForecast(ctx, args[1], args[2], horizon)
		if err != nil {
			return fmt.Errorf("forecast failed: %w", err)
		}
		printForecast(out, f)

	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], Usage)
	}
	return nil
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func printQuote(out io.Writer, res *app.ShippingQuoteResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  %-22s %-20s %10s  %s\n", "ID", "COURIER", "FEE", "NOTE")
	fmt.Fprintln(out, strings.Repeat("-", 72))
	for _, o := range res.Options {
		marker := " "
		if res.Default != nil && res.Default.ID == o.ID {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-22s %-20s %10s  %s\n", marker, o.ID, o.CourierName, o.Fee.StringFixed(2), o.Note)
	}
	if len(res.Options) == 0 {
		fmt.Fprintln(out, "  no couriers deliver to this address")
	}
	fmt.Fprintln(out, strings.Repeat("=", 72))
	fmt.Fprintf(out, "  Currency: %s\n", res.Currency)
}

func printTransactions(out io.Writer, res *app.ParseResult) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 90))
	fmt.Fprintf(out, "  %-32s %12s  %-24s %5s  %s\n", "DESCRIPTION", "AMOUNT", "CATEGORY", "CONF", "BOOK")
	fmt.Fprintln(out, strings.Repeat("-", 90))
	for _, tx := range res.Transactions {
		fmt.Fprintf(out, "  %-32s %12s  %-24s %5.2f  %s\n",
			truncate(tx.Description, 32), tx.Amount.StringFixed(2), truncate(tx.AICategory, 24), tx.Confidence, tx.Book)
	}
	fmt.Fprintln(out, strings.Repeat("=", 90))
	for _, f := range res.FailedFiles {
		fmt.Fprintf(out, "  failed: %s\n", f)
	}
}

func printStats(out io.Writer, storeID string, st *core.BookkeeperStats) {
	fmt.Fprintf(out, "Store          : %s\n", storeID)
	fmt.Fprintf(out, "Runs           : %d\n", st.Processed)
	fmt.Fprintf(out, "Documents      : %d\n", st.DocsCount)
	fmt.Fprintf(out, "Transactions   : %d\n", st.TxCount)
	fmt.Fprintf(out, "Time saved     : %d min\n", st.TimeSavedMinutes)
	fmt.Fprintf(out, "Cost savings   : %s\n", st.CostSavings.StringFixed(2))
}

func printBalances(out io.Writer, res *app.BalancesResult) {
	if len(res.Balances) == 0 {
		fmt.Fprintf(out, "No book entries for %s.\n", res.StoreID)
		return
	}
	fmt.Fprintf(out, "  %-20s %-24s %14s\n", "BOOK", "ACCOUNT", "BALANCE")
	for _, b := range res.Balances {
		fmt.Fprintf(out, "  %-20s %-24s %14s\n", b.Book, b.Account, b.Balance.StringFixed(2))
	}
}

func printForecast(out io.Writer, f *core.ProductForecast) {
	fmt.Fprintf(out, "Forecast for %s (store %s)\n", f.ProductID, f.StoreID)
	fmt.Fprintf(out, "  %-12s %12s %14s\n", "PERIOD", "QUANTITY", "REVENUE")
	for _, p := range f.Points {
		fmt.Fprintf(out, "  %-12s %12s %14s\n", p.Period, p.Quantity.StringFixed(0), p.Revenue.StringFixed(2))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
