package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tropicaldog17/navledger/internal/models"
	"github.com/tropicaldog17/navledger/internal/returns"
)

var importFile string

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Compound stored daily returns over a date range",
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

		sum, err := a.Service.Summary(cmd.Context(), portfolioID, from, to)
		if err != nil {
			return err
		}
		places := int32(a.Config.Ledger.ReturnPlaces)
		rounded := sum.Rounded(places)
		out := map[string]any{
			"portfolio_id":    portfolioID,
			"days":            sum.Days,
			"r_port":          rounded.RPort.String(),
			"r_ex_cash":       rounded.RExCash.String(),
			"r_bench_blended": rounded.RBenchBlended.String(),
			"r_spy_100":       rounded.RSpy100.String(),
			"r_cash":          rounded.RCash.String(),
		}
		if sum.Days > 0 {
			out["from"] = models.DateKey(sum.From)
			out["to"] = models.DateKey(sum.To)
		}
		if annual, ok := returns.Annualize(sum.RPort, sum.Days); ok {
			out["r_port_annualized"] = annual.Round(places).String()
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a JSON array of transactions into a portfolio log",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(importFile)
		if err != nil {
			return err
		}
		var raw []models.RawTransaction
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("failed to parse %s: %w", importFile, err)
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.Import(cmd.Context(), portfolioID, raw)
		if err != nil {
			return err
		}
		anomalies := make([]string, 0, len(res.Anomalies))
		for _, an := range res.Anomalies {
			anomalies = append(anomalies, an.Error())
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"portfolio_id": portfolioID,
			"stored":       res.Stored,
			"anomalies":    anomalies,
		})
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd, importCmd)

	summaryCmd.Flags().StringVar(&portfolioID, "portfolio", "", "Portfolio to summarize")
	summaryCmd.Flags().StringVar(&fromFlag, "from", "", "First date YYYY-MM-DD")
	summaryCmd.Flags().StringVar(&toFlag, "to", "", "Last date YYYY-MM-DD (today when empty)")
	_ = summaryCmd.MarkFlagRequired("portfolio")
	_ = summaryCmd.MarkFlagRequired("from")

	importCmd.Flags().StringVar(&portfolioID, "portfolio", "", "Portfolio the rows belong to when they carry none")
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to a JSON array of transactions")
	_ = importCmd.MarkFlagRequired("portfolio")
	_ = importCmd.MarkFlagRequired("file")
}
