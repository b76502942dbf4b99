// Package deployment provides commands for managing deployments in Dess.
package deployment

import "github.com/spf13/cobra"

func NewCmdDeployment() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployment",
		Short: "Manage deployments",
	}

	cmd.AddCommand(NewCmdDeploymentList())
	cmd.AddCommand(NewCmdDeploymentCreate())
	cmd.AddCommand(NewCmdDeploymentRemove())
	cmd.AddCommand(NewCmdDeploymentShow())
	cmd.AddCommand(NewCmdDeploymentDeploy())
	cmd.AddCommand(NewCmdDeploymentStop())
	cmd.AddCommand(NewCmdDeploymentRestart())
	cmd.AddCommand(NewCmdDeploymentLogs())
	return cmd
}
