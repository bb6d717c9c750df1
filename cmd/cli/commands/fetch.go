package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/mlregistry/internal/fetch"
)

var fetchCatalogPath string

var fetchCmd = &cobra.Command{
	Use:   "fetch <asset-name>",
	Short: "Download and verify a configured asset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := fetch.DefaultConfig()

		if fetchCatalogPath != "" {
			data, err := os.ReadFile(fetchCatalogPath)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(data, &config.Assets); err != nil {
				return err
			}
		}

		fetcher, err := fetch.NewFetcher(config, logger)
		if err != nil {
			return err
		}

		fetcher.SetProgress(func(downloaded, total int64) {
			if total > 0 {
				fmt.Fprintf(os.Stderr, "\r%d/%d bytes", downloaded, total)
			}
		})

		path, err := fetcher.EnsureByName(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr)
		fmt.Println(path)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCatalogPath, "catalog", "", "Path to a JSON asset catalog")
}
