package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"receivables-conciliation-backend/internal/conciliation"
	"receivables-conciliation-backend/internal/config"
	"receivables-conciliation-backend/internal/gateway"
	"receivables-conciliation-backend/internal/logging"
	"receivables-conciliation-backend/internal/report"
	"receivables-conciliation-backend/internal/services/rows"
	"receivables-conciliation-backend/internal/workflow"
)

func main() {
	var (
		configFile string
		status     string
		search     string
		limit      int
		encoding   string
		locale     string
		xlsxPath   string
		csvPath    string
	)
	flag.StringVar(&configFile, "config", "config.yaml", "Configuration file path")
	flag.StringVar(&status, "status", "all", "Row filter: all, matched, pending_receivable or unlinked_payment")
	flag.StringVar(&search, "q", "", "Search by name or tax id")
	flag.IntVar(&limit, "limit", 50, "Maximum rows to print (0 prints all)")
	flag.StringVar(&encoding, "encoding", "", "Input file encoding (utf-8, latin1, cp1252)")
	flag.StringVar(&locale, "locale", "pt-BR", "Locale for money formatting")
	flag.StringVar(&xlsxPath, "xlsx", "", "Also write the filtered table to this XLSX file")
	flag.StringVar(&csvPath, "csv", "", "Also download the service's CSV export to this file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] receivables-file [payments-file]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) < 1 || len(files) > 2 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.LoadOrEnv(configFile)
	logger := logging.NewLogger(cfg.Logging)

	filter, err := rows.ParseFilter(status)
	if err != nil {
		logger.Error("invalid status filter", "error", err)
		os.Exit(2)
	}

	client, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create gateway client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	o := workflow.New(client, workflow.WithLogger(logging.ForComponent(logger, "workflow")))
	session, err := run(ctx, o, files, encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", session.LastError)
		logger.Debug("conciliation aborted", "error", err)
		os.Exit(1)
	}

	view := rows.Build(session.Result, rows.Query{Status: filter, Search: search})
	printView(os.Stdout, view, limit, report.NewMoney(locale))

	if xlsxPath != "" {
		if err := writeWorkbook(xlsxPath, view); err != nil {
			logger.Error("failed to write workbook", "path", xlsxPath, "error", err)
			os.Exit(1)
		}
		fmt.Printf("\nWorkbook written to %s\n", xlsxPath)
	}
	if csvPath != "" {
		n, err := downloadExport(ctx, client, session.Token, csvPath)
		if err != nil {
			logger.Error(conciliation.UserMessage(err, conciliation.MsgExportFailed), "path", csvPath, "error", err)
			os.Exit(1)
		}
		fmt.Printf("CSV export written to %s (%d bytes)\n", csvPath, n)
	}
}

// run uploads one or two files and conciliates. With a single file the
// second upload is skipped.
func run(ctx context.Context, o *workflow.Orchestrator, files []string, encoding string) (workflow.Session, error) {
	for _, path := range files {
		s, err := upload(ctx, o, path, encoding)
		if err != nil {
			if s.LastError == "" {
				s.LastError = err.Error()
			}
			return s, err
		}
		fmt.Printf("📄 %s: %d receivables, %d payments so far\n", filepath.Base(path), s.ReceivablesCount, s.PaymentsCount)
		for _, rowErr := range s.RowErrors {
			fmt.Printf("   ⚠️  row %d: %s\n", rowErr.Row, rowErr.Message)
		}
	}

	if o.Session().Step == workflow.StepAwaitingSecondFile {
		if _, err := o.Skip(); err != nil {
			return o.Session(), err
		}
	}

	s, err := o.Conciliate(ctx)
	if err != nil && s.LastError == "" {
		s.LastError = err.Error()
	}
	return s, err
}

func upload(ctx context.Context, o *workflow.Orchestrator, path, encoding string) (workflow.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return o.Session(), err
	}
	defer f.Close()

	file, err := gateway.ToUTF8(conciliation.File{Name: filepath.Base(path), Content: f}, encoding)
	if err != nil {
		return o.Session(), err
	}
	return o.Upload(ctx, file)
}

func printView(out io.Writer, view rows.View, limit int, money report.Money) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "📊 CONCILIATION RESULTS")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Status\tName\tTax ID\tReceivable\tPayment\tDifference\tDate\tConfidence\t")

	shown := view.Rows
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, r := range shown {
		confidence := ""
		if level, ok := r.ConfidenceLevel(); ok {
			confidence = fmt.Sprintf("%d%% (%s)", *r.Confidence, level)
		}
		date := ""
		if r.Date != nil {
			date = r.Date.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Status, r.DisplayName, r.TaxID,
			money.FormatNull(r.ReceivableValue),
			money.FormatNull(r.PaymentValue),
			money.FormatNull(r.ValueDifference),
			date, confidence,
		)
	}
	_ = tw.Flush()

	if len(shown) < view.RowCount {
		fmt.Fprintf(out, "... %d more rows\n", view.RowCount-len(shown))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows shown: %d of %d (%d total)\n", len(shown), view.RowCount, view.RowCountAll)
	fmt.Fprintf(out, "Receivable value: %s\n", money.Format(view.Totals.ReceivableValue))
	fmt.Fprintf(out, "Payment value:    %s\n", money.Format(view.Totals.PaymentValue))
	fmt.Fprintf(out, "Pending value:    %s\n", money.Format(view.Totals.PendingValue))

	s := view.Summary
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Receivables: %d  Payments: %d\n", s.TotalReceivables, s.TotalPayments)
	fmt.Fprintf(out, "Matched: %d  Pending: %d  Unlinked: %d\n", s.MatchedCount, s.UnmatchedReceivablesCount, s.UnmatchedPaymentsCount)
	fmt.Fprintf(out, "Match rate: %s%%\n", s.MatchRate.String())
}

func writeWorkbook(path string, view rows.View) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.WriteWorkbook(f, view); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func downloadExport(ctx context.Context, client *gateway.Client, token, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := client.Export(ctx, token, f)
	if err != nil {
		f.Close()
		return n, err
	}
	return n, f.Close()
}
