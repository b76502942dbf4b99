// Package detect classifies a cloned repository into a project type and
// synthesizes a Dockerfile for stacks that don't ship their own.
package detect

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dess-cd/dess/domain"
)

// Classify inspects the top-level files of repoPath and returns the detected
// project type. Markers overlap between stacks, so the checks run in a fixed
// priority order and the first match wins.
func Classify(repoPath string) domain.ProjectType {
	entries, err := os.ReadDir(repoPath)
	if err != nil {
		slog.Warn("Failed to list repository files, assuming Docker",
			"layer", "detect",
			"operation", "classify",
			"repo_path", repoPath,
			"error", err,
		)
		return domain.ProjectTypeDocker
	}

	names := make([]string, 0, len(entries))
	nameSet := make(map[string]bool, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		nameSet[e.Name()] = true
	}

	// An explicit container descriptor always wins.
	if nameSet["Dockerfile"] || nameSet["docker-compose.yml"] {
		return domain.ProjectTypeDocker
	}

	if nameSet["manage.py"] && nameSet["requirements.txt"] {
		return domain.ProjectTypeDjango
	}

	if nameSet["next.config.js"] || nameSet["next.config.ts"] {
		return domain.ProjectTypeNextJS
	}

	if nameSet["package.json"] {
		if t, ok := classifyPackageJSON(repoPath); ok {
			return t
		}
	}

	if containsSubstring(names, "flask") || nameSet["app.py"] {
		return domain.ProjectTypeFlask
	}

	if containsSubstring(names, "fastapi") || nameSet["main.py"] {
		if pythonSourceMentionsFastAPI(repoPath, names) {
			return domain.ProjectTypeFastAPI
		}
	}

	if nameSet["index.html"] || nameSet["index.htm"] {
		return domain.ProjectTypeStatic
	}

	// Can't tell, so wrap it generically.
	return domain.ProjectTypeDocker
}

// classifyPackageJSON distinguishes React apps from plain Node services by
// the declared dependencies. A malformed package.json falls through to the
// remaining checks.
func classifyPackageJSON(repoPath string) (domain.ProjectType, bool) {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return domain.ProjectTypeUnknown, false
	}

	var pkg struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return domain.ProjectTypeUnknown, false
	}

	if _, ok := pkg.Dependencies["react"]; ok {
		return domain.ProjectTypeReact, true
	}
	// Express or any other dependency set is treated as a generic Node app.
	return domain.ProjectTypeNode, true
}

// pythonSourceMentionsFastAPI scans top-level .py files for the "fastapi"
// substring. Read errors skip the file; this is best-effort.
func pythonSourceMentionsFastAPI(repoPath string, names []string) bool {
	for _, name := range names {
		if !strings.HasSuffix(name, ".py") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(repoPath, name))
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(data)), "fastapi") {
			return true
		}
	}
	return false
}

func containsSubstring(names []string, marker string) bool {
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), marker) {
			return true
		}
	}
	return false
}
