package deployment

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dess-cd/dess/app"
	"github.com/dess-cd/dess/cmd/output"
	"github.com/dess-cd/dess/cmd/utils"
	"github.com/dess-cd/dess/domain"
	"github.com/spf13/cobra"
)

func NewCmdDeploymentCreate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a Git repository as a managed deployment",
		Long: `Register a new deployment from a Git repository.
Dess clones the repository, detects the application stack and generates a
Dockerfile automatically on the first deploy.`,
		Run: func(cmd *cobra.Command, args []string) {
			// Get flag values
			repoURL, _ := cmd.Flags().GetString("repo-url")
			name, _ := cmd.Flags().GetString("name")
			branch, _ := cmd.Flags().GetString("branch")
			autoDeploy, _ := cmd.Flags().GetBool("auto-deploy")
			envVars, _ := cmd.Flags().GetStringArray("env")

			// Create deployment struct from CLI input
			deployment := domain.NewDeployment(name, repoURL)
			if deployment.Name == "" {
				deployment.Name = deployment.RepoName()
			}
			if branch != "" {
				deployment.Branch = branch
			}
			deployment.AutoDeploy = autoDeploy
			for _, pair := range envVars {
				key, value, found := strings.Cut(pair, "=")
				if !found {
					utils.HandleCommandError(
						"parsing environment variable",
						fmt.Errorf("expected KEY=VALUE, got %q", pair),
					)
					return
				}
				deployment.EnvironmentVars[key] = value
			}

			// Call repository
			created, err := app.GetDeploymentRepository().Create(&deployment)
			if err != nil {
				utils.HandleCommandError("creating deployment from %s", err, "repository URL", repoURL)
				return
			}

			out, err := output.PrintDeploymentDetails(created, true)
			if err != nil {
				utils.HandleCommandError("printing deployment details table", err)
			}

			if _, err := fmt.Fprintln(cmd.OutOrStdout(), out); err != nil {
				utils.HandleCommandError("printing deployment details", err)
			}
		},
	}

	cmd.Flags().StringP("repo-url", "u", "", "Git repository URL")
	cmd.Flags().StringP("name", "n", "", "Custom deployment name (derived from the repository if not specified)")
	cmd.Flags().StringP("branch", "b", "", "Git branch to deploy (defaults to main)")
	cmd.Flags().Bool("auto-deploy", false, "Redeploy automatically on matching webhook pushes")
	cmd.Flags().StringArrayP("env", "e", nil, "Environment variable for the container (KEY=VALUE)")
	if err := cmd.MarkFlagRequired("repo-url"); err != nil {
		slog.Error("Failed to mark repo-url flag as required", "error", err)
		panic(fmt.Sprintf("CLI setup error: %v", err)) // This is a setup error, should panic
	}
	return cmd
}
