package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Rorical/RoriAgent/internal/app"
	"github.com/Rorical/RoriAgent/internal/config"
)

var (
	configPath    string
	taskFlag      string
	modelFlag     string
	metricsListen string
)

var rootCmd = &cobra.Command{
	Use:           "roriagent",
	Short:         "A terminal coding agent",
	Long:          `RoriAgent is a terminal coding agent that asks before it runs commands or writes files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runApp(cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, else the default location.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.LoadConfig()
}

func runApp(cfg *config.Config) error {
	application, err := app.NewApplication(app.Options{
		Config:        cfg,
		Task:          taskFlag,
		Model:         modelFlag,
		MetricsListen: metricsListen,
	})
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer application.Stop()

	if err := application.Start(); err != nil {
		return fmt.Errorf("application error: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.roriagent/config.yaml)")
	rootCmd.Flags().StringVarP(&taskFlag, "task", "t", "", "task to start with")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "model to use for this session")
	rootCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")

	rootCmd.AddCommand(profileCmd)
}
