package cmd

import (
	"github.com/spf13/cobra"
)

var useCmd = &cobra.Command{
	Use:   "use [profile-name]",
	Short: "Switch to a profile and start the agent",
	Long:  `Switch to the specified profile and immediately start the agent.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.SwitchProfile(args[0]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		return runApp(cfg)
	},
}

func init() {
	useCmd.Flags().StringVarP(&taskFlag, "task", "t", "", "task to start with")
	useCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "model to use for this session")
	useCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(useCmd)
}
