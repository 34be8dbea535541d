package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// refreshCmd represents the refresh command
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "強制重抓（cache epoch +1）",
	Long: `推進 cache epoch，讓之後的查詢略過所有既有快取重新抓取。

Example:
  go run ./cmd/chipkline refresh`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	epoch := app.service.Refresh(context.Background())
	fmt.Printf("✅ Cache epoch bumped to %d\n", epoch)
	return nil
}
