package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlsciences/oaih/internal/pkg/oai"
)

func newIdentifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <baseURL>",
		Short: "Show a data provider's harvesting capabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := oai.NewClient(cfg.HTTPTimeout)
			caps, err := client.Identify(context.Background(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("granularity:     %s\n", caps.Granularity)
			fmt.Printf("deleted records: %s\n", caps.DeletedRecordSupport)
			return nil
		},
	}
}
