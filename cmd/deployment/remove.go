package deployment

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/dess-cd/dess/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentRemove() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <deployment-id>",
		Short: "Remove a deployment and its data",
		Long: `Remove a deployment from Dess management.

This operation will permanently delete:
- All deployment history and logs
- Deployment configuration and metadata

The deployment cannot be recovered after deletion.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploymentRemove(cmd, args)
		},
	}

	// Add confirmation flags
	cmd.Flags().BoolP("confirm", "y", false, "Skip confirmation prompt and proceed with deletion")
	cmd.Flags().Bool("force", false, "Force removal even if the deployment is running")

	return cmd
}

// runDeploymentRemove handles the main logic for deployment removal
func runDeploymentRemove(cmd *cobra.Command, args []string) error {
	deploymentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
	}

	// Get confirmation flags
	skipConfirmation, _ := cmd.Flags().GetBool("confirm")
	forceRemoval, _ := cmd.Flags().GetBool("force")

	repo := app.GetDeploymentRepository()

	// Fetch deployment details before removal
	deployment, err := repo.FindByID(deploymentID)
	if err != nil {
		return fmt.Errorf("failed to find deployment %s: %w", deploymentID, err)
	}

	// Display deployment information for confirmation
	if err := output.FprintWarning(cmd, "\nWARNING: You are about to DELETE the following deployment:\n"); err != nil {
		return err
	}

	details, err := output.PrintDeploymentDetails(deployment, true)
	if err != nil {
		return fmt.Errorf("failed to format deployment details: %w", err)
	}
	if err := output.FprintPlain(cmd, "%s\n", details); err != nil {
		return err
	}

	// Check if the deployment is running and warn
	if deployment.Status == domain.DeploymentStatusRunning {
		if !forceRemoval {
			if err := output.FprintError(cmd, "ERROR: Deployment is currently RUNNING!\n"); err != nil {
				return err
			}
			if err := output.FprintPlain(cmd, "Stop the deployment first, or use --force to override.\n"); err != nil {
				return err
			}
			return fmt.Errorf("cannot remove running deployment without --force flag")
		} else {
			if err := output.FprintWarning(cmd, "WARNING: Deployment is RUNNING but will be force-removed\n"); err != nil {
				return err
			}
			if err := app.GetDeployerService().Stop(cmd.Context(), deploymentID); err != nil {
				return fmt.Errorf("failed to stop running deployment: %w", err)
			}
		}
	}

	// Confirmation prompt (unless skipped)
	if !skipConfirmation {
		if !promptConfirmation(cmd, deployment.Name) {
			if err := output.FprintPlain(cmd, "Deployment removal cancelled.\n"); err != nil {
				return err
			}
			return nil
		}
	}

	if err := output.FprintPlain(cmd, "Removing deployment...\n"); err != nil {
		return err
	}

	if err := repo.Delete(deploymentID); err != nil {
		return fmt.Errorf("failed to remove deployment: %w", err)
	}

	if err := output.FprintSuccess(cmd, "Deployment '%s' removed successfully\n", deployment.Name); err != nil {
		return err
	}

	return nil
}

// promptConfirmation asks the user to confirm deployment deletion
func promptConfirmation(cmd *cobra.Command, deploymentName string) bool {
	if err := output.FprintWarning(cmd, "Type the deployment name '%s' to confirm deletion: ", deploymentName); err != nil {
		return false
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	input = strings.TrimSpace(input)
	return input == deploymentName
}
