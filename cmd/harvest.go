package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dlsciences/oaih/internal/pkg/harvester"
	"github.com/dlsciences/oaih/internal/pkg/oai"
	"github.com/dlsciences/oaih/internal/pkg/stats"
)

func newHarvestCmd() *cobra.Command {
	var (
		prefix       string
		set          string
		from         string
		until        string
		outputDir    string
		harvestAll   bool
		splitBySet   bool
		writeHeaders bool
		zip          bool
	)

	cmd := &cobra.Command{
		Use:   "harvest <baseURL>",
		Short: "Run a one-shot harvest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats.Init()

			req := &harvester.Request{
				BaseURL:         args[0],
				MetadataPrefix:  prefix,
				SetSpec:         set,
				OutputDir:       outputDir,
				HarvestAll:      harvestAll,
				SplitBySet:      splitBySet,
				WriteHeaders:    writeHeaders,
				ZipOnCompletion: zip,
				ZipDir:          cfg.ZipDir,
				NotifyEvery:     cfg.NotifyEvery,
			}

			var err error
			if req.From, err = parseDateFlag(from); err != nil {
				return err
			}
			if req.Until, err = parseDateFlag(until); err != nil {
				return err
			}

			h := harvester.New(oai.NewClient(cfg.HTTPTimeout), harvester.NewLogMessageHandler(args[0]), nil)

			// A first interrupt kills the harvest cleanly, a second
			// one aborts the process.
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigs)
			go func() {
				<-sigs
				h.Kill()
				<-sigs
				os.Exit(1)
			}()

			result, err := h.Run(context.Background(), req)
			if err != nil {
				return err
			}

			fmt.Printf("harvested %s in %s (%s deleted, %d pages)\n",
				humanize.Comma(int64(result.RecordCount)),
				result.EndTime.Sub(result.StartTime).Round(time.Millisecond),
				humanize.Comma(int64(result.DeletedCount)),
				result.PageCount)
			if result.ZipPath != "" {
				fmt.Println("records zipped to", result.ZipPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "metadata prefix to harvest (default: every format the provider offers)")
	cmd.Flags().StringVarP(&set, "set", "s", "", "restrict the harvest to one set")
	cmd.Flags().StringVar(&from, "from", "", "harvest records changed on or after this date (YYYY-MM-DD or full UTC timestamp)")
	cmd.Flags().StringVar(&until, "until", "", "harvest records changed on or before this date")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory to write records to (empty runs in memory)")
	cmd.Flags().BoolVar(&harvestAll, "all", false, "delete the output directory and harvest everything")
	cmd.Flags().BoolVar(&splitBySet, "split-by-set", false, "write records into one subdirectory per set")
	cmd.Flags().BoolVar(&writeHeaders, "write-headers", false, "also write each record's OAI header to a file")
	cmd.Flags().BoolVar(&zip, "zip", false, "zip the output directory after a successful harvest")

	return cmd
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := oai.ParseTime(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
