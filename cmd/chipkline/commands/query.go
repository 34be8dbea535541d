package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [stock_id]",
	Short: "查詢分點買賣超排行",
	Long: `查詢個股在指定交易日區間內的分點買賣超排行，
指定 --branch 時另抓該分點兩年每日明細並合併股價計算累積買超。

Example:
  go run ./cmd/chipkline query 2330 --days 20
  go run ./cmd/chipkline query 2330 --days 20 --branch 富邦建國`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var (
	queryDays   int
	queryBranch string
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntVar(&queryDays, "days", 5, "交易日區間 (1,5,10,20,40,60,120,240)")
	queryCmd.Flags().StringVar(&queryBranch, "branch", "", "分點名稱（抓取每日明細）")
}

func runQuery(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	stockID := args[0]
	ctx := context.Background()

	view, err := app.service.QueryRanking(ctx, stockID, queryDays)
	if err != nil {
		return fmt.Errorf("ranking query: %w", err)
	}

	fmt.Printf("=== %s 分點排行 (%s ~ %s) ===\n", view.DisplayName, view.StartDate, view.EndDate)
	if view.Degraded {
		fmt.Println("⚠️  日期區間為估算值（股價日曆無法取得）")
	}

	fmt.Println("\n買超券商:")
	for i, row := range view.Ranking.Buyers {
		fmt.Printf("%3d. %-12s 買 %8d 賣 %8d 買賣超 %+8d\n",
			i+1, row.BranchName, row.BuyVolume, row.SellVolume, row.NetVolume)
	}
	fmt.Printf("     合計 %s / 平均 %s\n", view.Ranking.BuySummary.Total, view.Ranking.BuySummary.Avg)

	fmt.Println("\n賣超券商:")
	for i, row := range view.Ranking.Sellers {
		fmt.Printf("%3d. %-12s 買 %8d 賣 %8d 買賣超 %+8d\n",
			i+1, row.BranchName, row.BuyVolume, row.SellVolume, row.NetVolume)
	}
	fmt.Printf("     合計 %s / 平均 %s\n", view.Ranking.SellSummary.Total, view.Ranking.SellSummary.Avg)

	if queryBranch == "" {
		return nil
	}

	series, err := app.service.QueryBranch(ctx, stockID, queryBranch, queryDays)
	if err != nil {
		return fmt.Errorf("branch query: %w", err)
	}

	if series.PriceOnly {
		fmt.Printf("\n⚠️  找不到分點 %q 的明細，僅輸出股價序列 (%d 根K棒)\n", queryBranch, len(series.Points))
		return nil
	}

	fmt.Printf("\n=== %s @ %s 累積買超 ===\n", series.BranchName, stockID)
	fmt.Printf("區間: %s ~ %s（反白區 %s ~ %s）\n",
		series.Points[0].Date, series.Points[len(series.Points)-1].Date,
		series.CoveredStart, series.CoveredEnd)
	fmt.Printf("K棒數: %d\n", len(series.Points))
	fmt.Printf("期末累積買賣超: %+d 張\n", series.TotalNet())
	return nil
}
