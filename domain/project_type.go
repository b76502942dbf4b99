package domain

import "fmt"

// ProjectType identifies the detected application stack of a repository.
type ProjectType string

const (
	ProjectTypeUnknown ProjectType = ""
	ProjectTypeDjango  ProjectType = "django"
	ProjectTypeReact   ProjectType = "react"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypeNextJS  ProjectType = "nextjs"
	ProjectTypeFlask   ProjectType = "flask"
	ProjectTypeFastAPI ProjectType = "fastapi"
	ProjectTypeStatic  ProjectType = "static"
	ProjectTypeDocker  ProjectType = "docker"
)

func (t ProjectType) String() string {
	return string(t)
}

func (t ProjectType) IsValid() bool {
	switch t {
	case ProjectTypeDjango, ProjectTypeReact, ProjectTypeNode, ProjectTypeNextJS,
		ProjectTypeFlask, ProjectTypeFastAPI, ProjectTypeStatic, ProjectTypeDocker:
		return true
	default:
		return false
	}
}

func ParseProjectType(s string) (ProjectType, error) {
	if s == "" {
		return ProjectTypeUnknown, nil
	}
	t := ProjectType(s)
	if !t.IsValid() {
		return ProjectTypeUnknown, fmt.Errorf("invalid project type: %q", s)
	}
	return t, nil
}

// IsNodeFamily reports whether the stack runs on the Node.js runtime.
func (t ProjectType) IsNodeFamily() bool {
	switch t {
	case ProjectTypeNode, ProjectTypeReact, ProjectTypeNextJS:
		return true
	default:
		return false
	}
}
