package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dlsciences/oaih/internal/pkg/log"
	"github.com/dlsciences/oaih/internal/pkg/scheduler"
	"github.com/dlsciences/oaih/internal/pkg/stats"
)

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Manage and run scheduled harvests",
	}

	cmd.AddCommand(newSchedulerRunCmd())
	cmd.AddCommand(newSchedulerAddCmd())
	cmd.AddCommand(newSchedulerListCmd())
	cmd.AddCommand(newSchedulerRemoveCmd())
	cmd.AddCommand(newSchedulerNowCmd())
	cmd.AddCommand(newSchedulerLogCmd())

	return cmd
}

func newSchedulerRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats.Init()

			m, err := scheduler.NewManager(cfg)
			if err != nil {
				return err
			}

			if cfg.MetricsAddress != "" {
				go func() {
					mux := http.NewServeMux()
					mux.Handle("/metrics", promhttp.Handler())
					if err := http.ListenAndServe(cfg.MetricsAddress, mux); err != nil {
						log.Error("metrics server stopped", "err", err.Error())
					}
				}()
				log.Info("serving metrics", "address", cfg.MetricsAddress)
			}

			m.Start()
			log.Info("scheduler running", "schedules", len(m.List()))

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			<-sigs
			log.Info("shutting down")

			m.StopAll()
			return nil
		},
	}
}

func newSchedulerAddCmd() *cobra.Command {
	var (
		name       string
		prefix     string
		set        string
		interval   time.Duration
		runAtTime  string
		splitBySet bool
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "add <baseURL>",
		Short: "Add a scheduled harvest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := scheduler.NewManager(cfg)
			if err != nil {
				return err
			}
			defer m.StopAll()

			sh := &scheduler.ScheduledHarvest{
				RepositoryName: name,
				BaseURL:        args[0],
				MetadataPrefix: prefix,
				SetSpec:        set,
				Interval:       interval,
				RunAtTime:      runAtTime,
				SplitBySet:     splitBySet,
				Enabled:        !disabled,
			}
			if err := m.Add(sh); err != nil {
				return err
			}

			fmt.Println("added scheduled harvest", sh.UID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "human-readable repository name")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "metadata prefix to harvest (required)")
	cmd.Flags().StringVarP(&set, "set", "s", "", "restrict the harvest to one set")
	cmd.Flags().DurationVarP(&interval, "interval", "i", 24*time.Hour, "time between harvests (minimum one minute)")
	cmd.Flags().StringVar(&runAtTime, "at", "", "anchor the schedule at this time of day (HH:MM)")
	cmd.Flags().BoolVar(&splitBySet, "split-by-set", false, "write records into one subdirectory per set")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "store the schedule without registering its timer")
	cmd.MarkFlagRequired("prefix")

	return cmd
}

func newSchedulerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the scheduled harvests",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := scheduler.NewManager(cfg)
			if err != nil {
				return err
			}
			defer m.StopAll()

			for _, sh := range m.List() {
				last := "never"
				if !sh.LastHarvestTime.IsZero() {
					last = sh.LastHarvestTime.Format(time.RFC3339)
				}
				state := "enabled"
				if !sh.Enabled {
					state = "disabled"
				}
				fmt.Printf("%s\t%s\t%s\t%s\tevery %s\tlast %s\t%s\n",
					sh.UID, sh.RepositoryName, sh.BaseURL, sh.MetadataPrefix, sh.Interval, last, state)
			}
			return nil
		},
	}
}

func newSchedulerRemoveCmd() *cobra.Command {
	var deleteFiles bool

	cmd := &cobra.Command{
		Use:   "remove <uid>",
		Short: "Remove a scheduled harvest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := scheduler.NewManager(cfg)
			if err != nil {
				return err
			}
			defer m.StopAll()

			return m.Remove(args[0], deleteFiles)
		},
	}

	cmd.Flags().BoolVar(&deleteFiles, "delete-files", false, "also delete the schedule's harvested records and zip backups")
	return cmd
}

func newSchedulerNowCmd() *cobra.Command {
	var (
		all            bool
		allIfNoDeleted bool
	)

	cmd := &cobra.Command{
		Use:   "now <uid>",
		Short: "Run a scheduled harvest immediately and wait for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats.Init()

			m, err := scheduler.NewManager(cfg)
			if err != nil {
				return err
			}

			if err := m.HarvestNow(args[0], all, allIfNoDeleted); err != nil {
				m.StopAll()
				return err
			}

			m.Wait()
			m.StopAll()

			entries, err := m.Log().Query(args[0])
			if err == nil && len(entries) > 0 {
				printLogEntry(entries[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "force a full harvest, ignoring the last-harvest watermark")
	cmd.Flags().BoolVar(&allIfNoDeleted, "all-if-no-deleted", true, "harvest everything when the provider does not track deletions")
	return cmd
}

func newSchedulerLogCmd() *cobra.Command {
	var uid string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the harvest log",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := scheduler.NewManager(cfg)
			if err != nil {
				return err
			}
			defer m.StopAll()

			entries, err := m.Log().Query(uid)
			if err != nil {
				return err
			}
			for _, e := range entries {
				printLogEntry(e)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "only show harvests of this schedule")
	return cmd
}

func printLogEntry(e *scheduler.LogEntry) {
	fmt.Printf("%s\t%s\t%s\t%s\trecords=%d deleted=%d\t%s\n",
		e.StartTime.Format(time.RFC3339), e.ID, e.BaseURL, e.Status, e.RecordCount, e.DeletedCount, e.Message)
}
