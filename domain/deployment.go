// Package domain provides core domain types and entities for Dess.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DefaultBranch is assumed when a deployment doesn't specify one.
const DefaultBranch = "main"

// DefaultDockerfilePath is the conventional build descriptor location inside a clone.
const DefaultDockerfilePath = "Dockerfile"

type Deployment struct {
	ID          uuid.UUID
	Name        string
	Description string

	RepoURL string
	Branch  string

	ProjectType ProjectType
	Status      DeploymentStatus

	DeployURL string
	Port      *int

	DockerfilePath string
	BuildCommand   string
	StartCommand   string

	EnvironmentVars map[string]string

	ContainerID string
	ImageName   string

	BuildLog  string
	DeployLog string
	ErrorLog  string

	WebhookSecret string
	AutoDeploy    bool

	LastDeployedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewDeployment(name, repoURL string) Deployment {
	return Deployment{
		ID:              uuid.New(),
		Name:            name,
		RepoURL:         repoURL,
		Branch:          DefaultBranch,
		Status:          DeploymentStatusPending,
		DockerfilePath:  DefaultDockerfilePath,
		EnvironmentVars: map[string]string{},
	}
}

// RepoName extracts the repository name from the repository URL.
func (d *Deployment) RepoName() string {
	if d.RepoURL == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(d.RepoURL, "/")
	name := trimmed[strings.LastIndex(trimmed, "/")+1:]
	return strings.TrimSuffix(name, ".git")
}

// CloneURL returns the URL to clone the repository from.
func (d *Deployment) CloneURL() string {
	if strings.HasSuffix(d.RepoURL, ".git") {
		return d.RepoURL
	}
	return d.RepoURL + ".git"
}

// ImageTag returns the deterministic image tag for this deployment.
func (d *Deployment) ImageTag() string {
	return fmt.Sprintf("dess-deploy-%s:latest", d.ID)
}

// ContainerName returns the deterministic managed container name. The dess-
// prefix identifies containers this service may reclaim.
func (d *Deployment) ContainerName() string {
	return fmt.Sprintf("dess-%s-%s", slug.Make(d.Name), d.ID)
}

func (d *Deployment) PortValue() int {
	if d.Port == nil {
		return 0
	}
	return *d.Port
}

// ResetArtifacts clears the fields produced by a previous deploy attempt.
// Called when a FAILED or STOPPED deployment is driven through the pipeline again.
func (d *Deployment) ResetArtifacts() {
	d.ContainerID = ""
	d.ImageName = ""
	d.Port = nil
	d.DeployURL = ""
	d.BuildLog = ""
	d.DeployLog = ""
	d.ErrorLog = ""
}

func (d *Deployment) AppendBuildLog(line string) {
	d.BuildLog = appendLogLine(d.BuildLog, line)
}

func (d *Deployment) AppendDeployLog(line string) {
	d.DeployLog = appendLogLine(d.DeployLog, line)
}

func (d *Deployment) AppendErrorLog(line string) {
	d.ErrorLog = appendLogLine(d.ErrorLog, line)
}

func appendLogLine(current, line string) string {
	if line == "" {
		return current
	}
	stamp := time.Now().Format("2006-01-02 15:04:05")
	return current + fmt.Sprintf("[%s] %s\n", stamp, strings.TrimRight(line, "\n"))
}
