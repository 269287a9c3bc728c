package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/services"
)

var (
	portfolioID string
	dateFlag    string
	fromFlag    string
	toFlag      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the nightly close scheduler and the ops HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Serve(ctx)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close one business date for one or every portfolio",
	Example: `  navledger close --date 2024-01-31
  navledger close --portfolio main`,
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDayFlag(dateFlag)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if portfolioID != "" {
			res, err := a.Service.CloseDate(cmd.Context(), portfolioID, day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summarizeRun(res))
		}
		results, err := a.Service.CloseAll(cmd.Context(), day)
		out := make([]map[string]any, 0, len(results))
		for _, res := range results {
			out = append(out, summarizeRun(res))
		}
		if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
			return perr
		}
		return err
	},
}

var backfillCmd = &cobra.Command{
	Use:     "backfill",
	Short:   "Close every date of a range for one portfolio",
	Example: `  navledger backfill --portfolio main --from 2024-01-01 --to 2024-06-30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := models.ParseDate(fromFlag)
		if err != nil {
			return err
		}
		to, err := parseDayFlag(toFlag)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		res, err := a.Service.Backfill(ctx, portfolioID, from, to)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), summarizeRun(res))
	},
}

var accrueCmd = &cobra.Command{
	Use:   "accrue",
	Short: "Run only the cash interest step for one date",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDayFlag(dateFlag)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.Service.Accrue(cmd.Context(), portfolioID, day)
		if err != nil {
			return err
		}
		res := map[string]any{"status": out.Status}
		if out.Computation != nil {
			res["balance_minor"] = out.Computation.BalanceMinor
			res["apy"] = out.Computation.APY.String()
			res["amount"] = out.Computation.Amount().String()
		}
		if out.Transaction != nil {
			res["transaction_id"] = out.Transaction.ID
		}
		if out.Buffer != nil {
			res["buffer_month"] = out.Buffer.Month
			res["buffer_minor"] = out.Buffer.AccruedMinorUnits
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, closeCmd, backfillCmd, accrueCmd)

	closeCmd.Flags().StringVar(&portfolioID, "portfolio", "", "Portfolio to close (all configured when empty)")
	closeCmd.Flags().StringVar(&dateFlag, "date", "", "Business date YYYY-MM-DD (today when empty)")

	backfillCmd.Flags().StringVar(&portfolioID, "portfolio", "", "Portfolio to backfill")
	backfillCmd.Flags().StringVar(&fromFlag, "from", "", "First date YYYY-MM-DD")
	backfillCmd.Flags().StringVar(&toFlag, "to", "", "Last date YYYY-MM-DD (today when empty)")
	_ = backfillCmd.MarkFlagRequired("portfolio")
	_ = backfillCmd.MarkFlagRequired("from")

	accrueCmd.Flags().StringVar(&portfolioID, "portfolio", "", "Portfolio to accrue")
	accrueCmd.Flags().StringVar(&dateFlag, "date", "", "Accrual date YYYY-MM-DD (today when empty)")
	_ = accrueCmd.MarkFlagRequired("portfolio")
}

func parseDayFlag(s string) (time.Time, error) {
	if s == "" {
		return models.Day(time.Now().UTC()), nil
	}
	return models.ParseDate(s)
}

func summarizeRun(res *services.CloseResult) map[string]any {
	out := map[string]any{
		"portfolio_id": res.PortfolioID,
		"run_id":       res.RunID,
		"from":         models.DateKey(res.From),
		"to":           models.DateKey(res.To),
		"days":         len(res.Snapshots),
		"anomalies":    len(res.Anomalies),
	}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	if snap, row := res.Last(); snap != nil {
		out["nav"] = snap.NAV.String()
		out["stale"] = snap.Stale
		if row != nil {
			out["r_port"] = row.RPort.String()
			out["r_bench_blended"] = row.RBenchBlended.String()
		}
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
