package domain

import "fmt"

// DeploymentStatus represents where a deployment is in its lifecycle.
type DeploymentStatus int

const (
	DeploymentStatusPending DeploymentStatus = iota
	DeploymentStatusCloning
	DeploymentStatusAnalyzing
	DeploymentStatusBuilding
	DeploymentStatusDeploying
	DeploymentStatusRunning
	DeploymentStatusFailed
	DeploymentStatusStopped
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentStatusPending:
		return "pending"
	case DeploymentStatusCloning:
		return "cloning"
	case DeploymentStatusAnalyzing:
		return "analyzing"
	case DeploymentStatusBuilding:
		return "building"
	case DeploymentStatusDeploying:
		return "deploying"
	case DeploymentStatusRunning:
		return "running"
	case DeploymentStatusFailed:
		return "failed"
	case DeploymentStatusStopped:
		return "stopped"
	default:
		return "pending"
	}
}

func ParseDeploymentStatus(s string) (DeploymentStatus, error) {
	switch s {
	case "pending":
		return DeploymentStatusPending, nil
	case "cloning":
		return DeploymentStatusCloning, nil
	case "analyzing":
		return DeploymentStatusAnalyzing, nil
	case "building":
		return DeploymentStatusBuilding, nil
	case "deploying":
		return DeploymentStatusDeploying, nil
	case "running":
		return DeploymentStatusRunning, nil
	case "failed":
		return DeploymentStatusFailed, nil
	case "stopped":
		return DeploymentStatusStopped, nil
	default:
		return DeploymentStatusPending, fmt.Errorf("invalid deployment status: %q", s)
	}
}

// Terminal reports whether the status is a stable rest state with no
// pipeline activity in flight.
func (s DeploymentStatus) Terminal() bool {
	switch s {
	case DeploymentStatusPending, DeploymentStatusRunning, DeploymentStatusFailed, DeploymentStatusStopped:
		return true
	default:
		return false
	}
}
