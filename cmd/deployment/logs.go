package deployment

import (
	"fmt"
	"os"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/dess-cd/dess/cmd/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentLogs() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <deployment-id>",
		Short: "View logs for a deployment",
		Long: `Show the recorded pipeline log for a deployment.
With --container, show the container's output streams instead.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runDeploymentLogs(cmd, args); err != nil {
				utils.HandleCommandError("getting deployment logs", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().Bool("container", false, "Show container output instead of the pipeline log")
	cmd.Flags().Int("tail", 100, "Number of container log lines to show")
	return cmd
}

// runDeploymentLogs handles the main logic for showing deployment logs
func runDeploymentLogs(cmd *cobra.Command, args []string) error {
	deploymentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid deployment ID format: %s", args[0])
	}

	deployment, err := app.GetDeploymentRepository().FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to find deployment %s: %w", deploymentID, err)
	}

	container, _ := cmd.Flags().GetBool("container")
	if container {
		if deployment.ContainerID == "" {
			return fmt.Errorf("deployment '%s' has no container", deployment.Name)
		}
		tail, _ := cmd.Flags().GetInt("tail")
		logs, err := app.GetRuntime().ReadLogs(cmd.Context(), deployment.ContainerID, true, true, tail)
		if err != nil {
			return fmt.Errorf("failed to read container logs: %w", err)
		}
		return output.FprintPlain(cmd, "%s", logs)
	}

	entries, err := app.GetDeploymentLogRepository().ListByDeploymentID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to list logs for deployment %s: %w", deploymentID, err)
	}

	if len(entries) == 0 {
		return output.FprintPlain(cmd, "No logs recorded for deployment '%s'.", deployment.Name)
	}

	for _, entry := range entries {
		timestamp := entry.CreatedAt.Format("2006-01-02 15:04:05")
		if err := output.FprintPlain(cmd, "%s [%s] %s", timestamp, entry.Level, entry.Message); err != nil {
			return err
		}
	}
	return nil
}
