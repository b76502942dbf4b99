package deployment

import (
	"fmt"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentStop() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <deployment-id>",
		Short: "Stop a running deployment",
		Long: `Stop a running deployment.
This removes the container and releases the allocated host port.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runDeploymentStop(cmd, args)
			if err != nil {
				// Silence usage for runtime errors (not argument validation errors)
				cmd.SilenceUsage = true
			}
			return err
		},
	}

	return cmd
}

// runDeploymentStop handles the main logic for stopping a deployment
func runDeploymentStop(cmd *cobra.Command, args []string) error {
	deploymentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
	}

	repo := app.GetDeploymentRepository()

	// Fetch deployment details for display
	deployment, err := repo.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to find deployment %s: %w", deploymentID, err)
	}

	if err := output.FprintPlain(cmd, "Stopping deployment '%s'\n", deployment.Name); err != nil {
		return err
	}

	if err := app.GetDeployerService().Stop(cmd.Context(), deploymentID); err != nil {
		return err
	}

	// Get updated deployment for final status
	updated, err := repo.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to get updated deployment status: %w", err)
	}

	if err := output.FprintSuccess(cmd, "\nDeployment '%s' stopped successfully\n", updated.Name); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Status: %s", updated.Status.String()); err != nil {
		return err
	}

	return nil
}
