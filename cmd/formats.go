package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dlsciences/oaih/internal/pkg/oai"
)

func newFormatsCmd() *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "formats <baseURL>",
		Short: "List the metadata formats a data provider offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := oai.NewClient(cfg.HTTPTimeout)
			formats, err := client.ListMetadataFormats(context.Background(), args[0], identifier)
			if err != nil {
				return err
			}

			for _, f := range formats {
				fmt.Printf("%s\t%s\t%s\n", f.Prefix, f.Schema, f.Namespace)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "list formats available for one item instead of the whole repository")
	return cmd
}
