package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chipkline",
	Short: "籌碼K線 - 台股分點籌碼儀表板後端",
	Long: `chipkline 整合 CLI

抓取台股分點進出排行與分點每日買賣明細，
合併股價K線計算累積買超部位。

Usage:
  go run ./cmd/chipkline [command]

Examples:
  go run ./cmd/chipkline api
  go run ./cmd/chipkline query 2330 --days 20
  go run ./cmd/chipkline scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
