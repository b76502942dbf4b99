package detect

import (
	"strconv"

	"github.com/dess-cd/dess/domain"
)

// InternalPort returns the port the containerized application listens on for
// the given project type. explicitPort, when non-zero, overrides the default
// for stacks without a fixed convention.
func InternalPort(projectType domain.ProjectType, explicitPort int) int {
	switch {
	case projectType.IsNodeFamily():
		return 3000
	case projectType == domain.ProjectTypeFlask:
		return 5000
	case projectType == domain.ProjectTypeStatic:
		return 80
	default:
		if explicitPort > 0 {
			return explicitPort
		}
		return 8000
	}
}

// RuntimeEnv merges per-stack environment defaults into the user-provided
// variables. User values win for keys the stack only defaults (settings
// module, Flask entry point); hard requirements like production mode are
// always set.
func RuntimeEnv(projectType domain.ProjectType, userEnv map[string]string, internalPort int) map[string]string {
	env := make(map[string]string, len(userEnv)+4)
	for k, v := range userEnv {
		env[k] = v
	}

	switch {
	case projectType.IsNodeFamily():
		env["PORT"] = strconv.Itoa(internalPort)
		env["NODE_ENV"] = "production"
	case projectType == domain.ProjectTypeDjango:
		if _, ok := env["DJANGO_SETTINGS_MODULE"]; !ok {
			env["DJANGO_SETTINGS_MODULE"] = "settings"
		}
		env["DEBUG"] = "False"
		env["ALLOWED_HOSTS"] = "*"
	case projectType == domain.ProjectTypeFlask:
		env["FLASK_ENV"] = "production"
		if _, ok := env["FLASK_APP"]; !ok {
			env["FLASK_APP"] = "app.py"
		}
		env["PORT"] = strconv.Itoa(internalPort)
	case projectType == domain.ProjectTypeFastAPI:
		env["PORT"] = strconv.Itoa(internalPort)
		env["HOST"] = "0.0.0.0"
	}

	return env
}

// StartupKeywords returns the log substrings that indicate the given stack's
// server finished starting. Used by the health verifier's liveness fallback.
func StartupKeywords(projectType domain.ProjectType) []string {
	switch {
	case projectType.IsNodeFamily():
		return []string{
			"Listening on",
			"Server running",
			"Started server",
			"Ready to accept connections",
			"Application started",
		}
	case projectType == domain.ProjectTypeDjango:
		return []string{
			"Starting development server",
			"Django version",
			"Watching for file changes",
			"Quit the server with CONTROL-C",
		}
	case projectType == domain.ProjectTypeFlask:
		return []string{
			"Running on",
			"Serving Flask app",
			"* Debug mode:",
			"WARNING: This is a development server",
		}
	case projectType == domain.ProjectTypeFastAPI:
		return []string{
			"Uvicorn running on",
			"Application startup complete",
			"Started server process",
			"Waiting for application startup",
		}
	case projectType == domain.ProjectTypeStatic:
		return []string{
			"Configuration complete",
			"nginx: configuration file",
			"worker process",
		}
	default:
		return []string{
			"Listening on",
			"Server running",
			"Started server",
			"Application started",
			"Server started",
			"Ready to accept connections",
			"Accepting connections",
			"Running on",
		}
	}
}
