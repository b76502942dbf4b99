package deployment

import (
	"fmt"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentRestart() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <deployment-id>",
		Short: "Restart a deployment's container",
		Long: `Restart the container of a deployment in place.
The image, port and configuration are kept; only the container process restarts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runDeploymentRestart(cmd, args)
			if err != nil {
				cmd.SilenceUsage = true
			}
			return err
		},
	}

	return cmd
}

func runDeploymentRestart(cmd *cobra.Command, args []string) error {
	deploymentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
	}

	deployment, err := app.GetDeploymentRepository().FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to find deployment %s: %w", deploymentID, err)
	}

	restarted, err := app.GetDeployerService().Restart(cmd.Context(), deploymentID)
	if err != nil {
		return err
	}

	if !restarted {
		return output.FprintWarning(cmd,
			"Deployment '%s' has no container to restart. Run a deploy first.", deployment.Name)
	}

	return output.FprintSuccess(cmd, "Deployment '%s' restarted", deployment.Name)
}
