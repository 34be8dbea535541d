package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twchip/chipkline/internal/api"
	"github.com/twchip/chipkline/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "啟動 API 伺服器",
	Long: `啟動籌碼儀表板的 REST API 伺服器。

Endpoints:
  GET  /health                - Health check
  GET  /api/ranking/{stockID} - 分點買賣超排行
  GET  /api/series/{stockID}  - 股價 + 分點流向合併序列
  POST /api/refresh           - 強制重抓（cache epoch +1）
  GET  /ws/query              - 查詢進度推播

Example:
  go run ./cmd/chipkline api
  go run ./cmd/chipkline api --port 8089`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 伺服器埠號")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== chipkline API Server ===")

	app, err := buildApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	queryHandler := handlers.NewQueryHandler(app.service, app.log)
	wsHandler := handlers.NewWSHandler(app.service, app.log)
	router := api.NewRouter(queryHandler, wsHandler, app.log)
	server := api.New(app.cfg, app.log, router)

	go func() {
		if err := server.Start(); err != nil {
			app.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.log.Info("Server stopped")
	return nil
}
