package deployment

import (
	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/dess-cd/dess/cmd/utils"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all managed deployments",
		Long: `Display all deployments currently managed by Dess.

Shows deployment information in a table format including:
- Deployment name, detected stack and current status
- Allocated host port
- Creation timestamp`,
		Run: func(cmd *cobra.Command, args []string) {
			deployments, err := app.GetDeploymentRepository().List()
			if err != nil {
				utils.HandleCommandError("listing deployments", err)
				return
			}

			if len(deployments) == 0 {
				if err := output.FprintPlain(cmd, "No deployments found."); err != nil {
					utils.HandleCommandError("printing no deployments message", err)
				}
				return
			}

			out, err := output.PrintDeploymentList(deployments)
			if err != nil {
				utils.HandleCommandError("printing deployment list table", err)
				return
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				utils.HandleCommandError("printing deployment list output", err)
			}
		},
	}
}
