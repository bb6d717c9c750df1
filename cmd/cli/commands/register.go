package commands

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/mlregistry/internal/registry"
	"github.com/inferloop/mlregistry/pkg/models"
)

var (
	registerKind     string
	registerCategory string
	registerDataset  string
	registerVersion  string
	registerBlobPath string
	registerMetrics  string
	registerDataPath string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a trained model artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(registerBlobPath)
		if err != nil {
			return err
		}

		req := &registry.RegisterRequest{
			Kind:            registerKind,
			ProblemCategory: registerCategory,
			DatasetName:     registerDataset,
			VersionLabel:    registerVersion,
			Blob:            blob,
		}

		if registerMetrics != "" {
			if err := json.Unmarshal([]byte(registerMetrics), &req.TrainingMetrics); err != nil {
				return err
			}
		}

		if registerDataPath != "" {
			data, err := os.ReadFile(registerDataPath)
			if err != nil {
				return err
			}
			var reference models.Dataset
			if err := json.Unmarshal(data, &reference); err != nil {
				return err
			}
			req.ReferenceData = reference
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}

		record, err := reg.RegisterModel(context.Background(), req)
		if err != nil {
			return err
		}

		return printJSON(record)
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerKind, "kind", "custom", "Model kind (gbm, glm, rf, ...)")
	registerCmd.Flags().StringVar(&registerCategory, "category", "", "Problem category (regression, classification, ...)")
	registerCmd.Flags().StringVar(&registerDataset, "dataset", "", "Dataset name")
	registerCmd.Flags().StringVar(&registerVersion, "version", "v1", "Version label")
	registerCmd.Flags().StringVar(&registerBlobPath, "blob", "", "Path to the serialized model file")
	registerCmd.Flags().StringVar(&registerMetrics, "metrics", "", "Training metrics as JSON, e.g. '{\"rmse\": 12.3}'")
	registerCmd.Flags().StringVar(&registerDataPath, "reference-data", "", "Path to a JSON dataset used as drift reference")

	registerCmd.MarkFlagRequired("category")
	registerCmd.MarkFlagRequired("dataset")
	registerCmd.MarkFlagRequired("blob")
}
