package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/mlregistry/pkg/models"
)

var (
	monitorDataPath string
	monitorMetrics  string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <artifact-id>",
	Short: "Check candidate data for drift and append a monitoring snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(monitorDataPath)
		if err != nil {
			return err
		}

		var candidate models.Dataset
		if err := json.Unmarshal(data, &candidate); err != nil {
			return err
		}

		var observed map[string]float64
		if monitorMetrics != "" {
			if err := json.Unmarshal([]byte(monitorMetrics), &observed); err != nil {
				return err
			}
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}

		report, err := reg.RecordMonitoring(context.Background(), args[0], candidate, observed, nil)
		if err != nil {
			return err
		}

		return printJSON(report)
	},
}

func init() {
	monitorCmd.Flags().StringVar(&monitorDataPath, "data", "", "Path to a JSON dataset of candidate values")
	monitorCmd.Flags().StringVar(&monitorMetrics, "metrics", "", "Observed metrics as JSON")

	monitorCmd.MarkFlagRequired("data")
}
