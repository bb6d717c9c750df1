package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/inferloop/mlregistry/pkg/models"
)

var (
	listKind       string
	listCategory   string
	listDataset    string
	listSuperseded bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered models",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		records, err := reg.ListModels(context.Background(), &models.RecordFilter{
			Kind:              listKind,
			ProblemCategory:   listCategory,
			DatasetName:       listDataset,
			IncludeSuperseded: listSuperseded,
		})
		if err != nil {
			return err
		}

		return printJSON(records)
	},
}

var getCmd = &cobra.Command{
	Use:   "get <artifact-id>",
	Short: "Show one model record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		record, err := reg.GetRecord(context.Background(), args[0])
		if err != nil {
			return err
		}

		return printJSON(record)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <artifact-id>",
	Short: "Show a model's metrics history in append order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}

		history, err := reg.History(context.Background(), args[0])
		if err != nil {
			return err
		}

		return printJSON(history)
	},
}

func init() {
	listCmd.Flags().StringVar(&listKind, "kind", "", "Filter by model kind")
	listCmd.Flags().StringVar(&listCategory, "category", "", "Filter by problem category")
	listCmd.Flags().StringVar(&listDataset, "dataset", "", "Filter by dataset name")
	listCmd.Flags().BoolVar(&listSuperseded, "include-superseded", false, "Include superseded models")
}
