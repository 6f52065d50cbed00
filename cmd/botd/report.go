package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/adapters/tradelog"
)

const reportRows = 25

// runReport prints the most recent trade-log entries as a table — the
// CLI's read-only window into TL (spec.md §2.5).
func runReport(tl *tradelog.Log) {
	entries, err := tl.Recent(reportRows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Println("no trades recorded yet")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Symbol", "Side", "Qty", "Score", "Price", "Reason", "Broker", "Mode")

	for _, e := range entries {
		table.Append(
			e.TradeTime().Format("2006-01-02 15:04:05"),
			e.Symbol,
			string(e.Side),
			fmt.Sprintf("%.2f", e.Qty),
			fmt.Sprintf("%d", e.Score),
			fmt.Sprintf("%.2f", e.PriceEst),
			e.Reason,
			e.Broker,
			e.Mode,
		)
	}
	table.Render()
}
