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

func NewCmdDeploymentDeploy() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy <deployment-id>",
		Short: "Deploy or redeploy an application",
		Long: `Run the full deployment pipeline: clone the repository, detect the stack,
build the container image and start the container on an allocated port.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runDeploymentDeploy(cmd, args); err != nil {
				utils.HandleCommandError("deploying", err)
				os.Exit(1)
			}
		},
	}

	return cmd
}

// runDeploymentDeploy handles the main logic for running the pipeline
func runDeploymentDeploy(cmd *cobra.Command, args []string) error {
	deploymentID, err := uuid.Parse(args[0])
	if err != nil {
		utils.HandleInvalidUUID("deployment deploy", args[0])
		return nil // This won't be reached due to os.Exit(1) in HandleInvalidUUID
	}

	repo := app.GetDeploymentRepository()

	// Fetch deployment details for display
	deployment, err := repo.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to find deployment %s: %w", deploymentID, err)
	}

	// Display deployment info
	if err := output.FprintPlain(cmd, "Starting deployment '%s'\n", deployment.Name); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Repository: %s", deployment.RepoURL); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Branch: %s\n", deployment.Branch); err != nil {
		return err
	}

	if err := app.GetDeployerService().Deploy(cmd.Context(), deploymentID); err != nil {
		return err
	}

	// Get updated deployment for final status
	updated, err := repo.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to get updated deployment status: %w", err)
	}

	if err := output.FprintSuccess(cmd, "\nDeployment '%s' is running\n", updated.Name); err != nil {
		return err
	}
	if err := output.FprintPlain(cmd, "Status: %s", updated.Status.String()); err != nil {
		return err
	}
	if updated.DeployURL != "" {
		if err := output.FprintPlain(cmd, "URL: %s", updated.DeployURL); err != nil {
			return err
		}
	}

	return nil
}
