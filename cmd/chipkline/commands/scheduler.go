package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/twchip/chipkline/internal/scheduler"
	"github.com/twchip/chipkline/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "排程器管理",
	Long: `啟動排程器或立即執行排程作業。

登錄的作業:
- maintenance: 每日 22:30（清除過期快照、更新股票代碼表）

Example:
  go run ./cmd/chipkline scheduler start
  go run ./cmd/chipkline scheduler run maintenance`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "啟動排程器",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "立即執行指定作業",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func initScheduler() (*scheduler.Scheduler, *app, error) {
	app, err := buildApp()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(app.log)

	var purger jobs.SnapshotPurger
	if app.snapshots != nil {
		purger = app.snapshots
	}
	if err := sched.AddJob(jobs.NewMaintenanceJob(purger, app.codes, app.log)); err != nil {
		app.Close()
		return nil, nil, fmt.Errorf("add maintenance job: %w", err)
	}

	return sched, app, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== chipkline Scheduler ===")

	sched, app, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer app.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	sched, app, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer app.Close()

	jobName := args[0]
	fmt.Printf("Running job %s...\n", jobName)

	if err := sched.RunJob(jobName); err != nil {
		return err
	}

	// RunJob is asynchronous: wait for the single run to land in history.
	for {
		time.Sleep(500 * time.Millisecond)

		history, err := sched.GetJobHistory(jobName)
		if err != nil {
			return err
		}
		if results := history.GetLatestResults(1); len(results) > 0 {
			r := results[0]
			if r.Success {
				fmt.Printf("✅ %s completed in %s\n", jobName, r.Duration)
				return nil
			}
			return fmt.Errorf("job %s failed: %s", jobName, r.Error)
		}
	}
}
