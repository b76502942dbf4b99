package deployment

import (
	"fmt"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Show detailed deployment information",
		Long:  "Display comprehensive information about a deployment including configuration, allocated port and current status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return cmd.Help()
			}

			deploymentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid deployment ID '%s': must be a valid UUID", args[0])
			}

			deployment, err := app.GetDeploymentRepository().FindByID(deploymentID)
			if err != nil {
				return fmt.Errorf("failed to retrieve deployment %s: %w", deploymentID, err)
			}

			out, err := output.PrintDeploymentDetails(deployment, false)
			if err != nil {
				return fmt.Errorf("failed to format deployment details: %w", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return fmt.Errorf("failed to print deployment details: %w", err)
			}

			return nil
		},
	}
}
