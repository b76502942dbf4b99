// Package root implements the command line interface for Dess.
package root

import (
	"log"
	"os"
	"path/filepath"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/deployment"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/dess-cd/dess/cmd/server"
	"github.com/dess-cd/dess/cmd/version"
	"github.com/dess-cd/dess/config"
	"github.com/dess-cd/dess/logging"
	"github.com/spf13/cobra"
)

var (
	appConfig *config.Config
)

func Execute() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("Failed to get home directory: %s", err)
		os.Exit(1)
	}

	defaultDataDir := filepath.Join(homeDir, ".dess")

	err = NewCmdRoot(defaultDataDir).Execute()
	if err != nil {
		os.Exit(1)
	}
}

func NewCmdRoot(defaultDataDir string) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "dess",
		Short: "Deployment service for applications built from Git repositories",
		Long: `Dess deploys applications straight from Git repositories.
	It clones the repository, detects the application stack, builds a container
	image and runs it on an allocated host port with health verification.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize configuration for CLI with data directory override
			var err error
			appConfig, err = config.NewConfigForCLI(dataDir)
			if err != nil {
				log.Fatalf("Failed to initialize configuration: %s", err)
				os.Exit(1)
			}

			// Initialize colors (CLI flag overrides config)
			colorDisabled := !appConfig.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true // --no-color flag overrides config
			}
			output.InitColors(colorDisabled)

			// Initialize logging (CLI flag overrides config)
			logLevel := appConfig.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel)

			// Initialize application with config
			if err := app.InitializeWithConfig(appConfig); err != nil {
				log.Fatalf("Failed to initialize application: %s", err)
				os.Exit(1)
			}
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", defaultDataDir, "Data directory for Dess configuration and state")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(deployment.NewCmdDeployment())
	cmd.AddCommand(server.NewCmdServer())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}
