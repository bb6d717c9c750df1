package commands

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inferloop/mlregistry/internal/metadata"
	"github.com/inferloop/mlregistry/internal/registry"
	"github.com/inferloop/mlregistry/pkg/constants"
)

var (
	rootPath string
	logLevel string

	logger = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:     "mlreg",
	Short:   "Model registry command line client",
	Version: constants.AppVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			level = logrus.WarnLevel
		}
		logger.SetLevel(level)
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootPath, "root", constants.DefaultRegistryPath, "Registry root directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")

	viper.SetEnvPrefix("MLREG")
	viper.AutomaticEnv()
	if root := viper.GetString("ROOT"); root != "" {
		rootPath = root
	}

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(fetchCmd)
}

// openRegistry builds an embedded registry over the root directory, the same
// layout the server uses.
func openRegistry() (*registry.Registry, error) {
	store, err := metadata.NewStore(&metadata.StoreConfig{
		BasePath: filepath.Join(rootPath, constants.DefaultMetricsDir),
	}, logger)
	if err != nil {
		return nil, err
	}

	return registry.NewRegistry(&registry.Config{RootPath: rootPath}, store, logger)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
