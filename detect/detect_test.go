package detect

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dess-cd/dess/domain"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestClassify_DockerfileWins(t *testing.T) {
	// A container descriptor dominates every other marker.
	dir := writeRepo(t, map[string]string{
		"Dockerfile":       "FROM alpine\n",
		"manage.py":        "",
		"requirements.txt": "django\n",
		"package.json":     `{"dependencies":{"react":"^18.0.0"}}`,
	})

	assert.Equal(t, domain.ProjectTypeDocker, Classify(dir))
}

func TestClassify_DockerCompose(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"docker-compose.yml": "services: {}\n",
	})

	assert.Equal(t, domain.ProjectTypeDocker, Classify(dir))
}

func TestClassify_Django(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"manage.py":        "#!/usr/bin/env python\n",
		"requirements.txt": "django==4.2\n",
	})

	assert.Equal(t, domain.ProjectTypeDjango, Classify(dir))
}

func TestClassify_DjangoRequiresRequirements(t *testing.T) {
	// manage.py without requirements.txt matches no rule and falls through.
	dir := writeRepo(t, map[string]string{
		"manage.py": "",
	})

	assert.Equal(t, domain.ProjectTypeDocker, Classify(dir))
}

func TestClassify_NextJS(t *testing.T) {
	for _, config := range []string{"next.config.js", "next.config.ts"} {
		dir := writeRepo(t, map[string]string{
			config:         "module.exports = {}\n",
			"package.json": `{"dependencies":{"react":"^18.0.0","next":"^14.0.0"}}`,
		})

		assert.Equal(t, domain.ProjectTypeNextJS, Classify(dir), config)
	}
}

func TestClassify_ReactFromDependencies(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"package.json": `{"dependencies":{"react":"^18.2.0","react-dom":"^18.2.0"}}`,
	})

	assert.Equal(t, domain.ProjectTypeReact, Classify(dir))
}

func TestClassify_NodeFromExpress(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"package.json": `{"dependencies":{"express":"^4.18.0"}}`,
	})

	assert.Equal(t, domain.ProjectTypeNode, Classify(dir))
}

func TestClassify_NodeDefaultForPackageJSON(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"package.json": `{"dependencies":{"lodash":"^4.17.0"}}`,
	})

	assert.Equal(t, domain.ProjectTypeNode, Classify(dir))
}

func TestClassify_MalformedPackageJSONFallsThrough(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"package.json": `{not json`,
		"index.html":   "<html></html>",
	})

	assert.Equal(t, domain.ProjectTypeStatic, Classify(dir))
}

func TestClassify_FlaskByAppPy(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"app.py": "from flask import Flask\n",
	})

	assert.Equal(t, domain.ProjectTypeFlask, Classify(dir))
}

func TestClassify_FlaskByFilename(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"my_flask_service.py": "import flask\n",
	})

	assert.Equal(t, domain.ProjectTypeFlask, Classify(dir))
}

func TestClassify_FastAPIRequiresContentMatch(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"main.py": "from fastapi import FastAPI\napp = FastAPI()\n",
	})

	assert.Equal(t, domain.ProjectTypeFastAPI, Classify(dir))
}

func TestClassify_MainPyWithoutFastAPIContent(t *testing.T) {
	// main.py without the fastapi substring anywhere falls through to Docker.
	dir := writeRepo(t, map[string]string{
		"main.py": "print('hello')\n",
	})

	assert.Equal(t, domain.ProjectTypeDocker, Classify(dir))
}

func TestClassify_Static(t *testing.T) {
	dir := writeRepo(t, map[string]string{
		"index.html": "<html></html>",
		"style.css":  "body {}",
	})

	assert.Equal(t, domain.ProjectTypeStatic, Classify(dir))
}

func TestClassify_EmptyRepoDefaultsToDocker(t *testing.T) {
	assert.Equal(t, domain.ProjectTypeDocker, Classify(t.TempDir()))
}

func TestGenerateDockerfile_KnownTypes(t *testing.T) {
	tests := []struct {
		projectType domain.ProjectType
		contains    string
	}{
		{domain.ProjectTypeDjango, "python manage.py migrate"},
		{domain.ProjectTypeReact, "npx serve -s build"},
		{domain.ProjectTypeNode, "node server.js"},
		{domain.ProjectTypeNextJS, ".next/standalone"},
		{domain.ProjectTypeFlask, "flask run --host=0.0.0.0"},
		{domain.ProjectTypeFastAPI, "uvicorn main:app"},
		{domain.ProjectTypeStatic, "nginx"},
	}

	for _, tt := range tests {
		t.Run(tt.projectType.String(), func(t *testing.T) {
			content := GenerateDockerfile(tt.projectType)
			assert.True(t, strings.HasPrefix(content, "FROM ") || strings.HasPrefix(content, "# Build stage"))
			assert.Contains(t, content, tt.contains)
			assert.Contains(t, content, "EXPOSE")
		})
	}
}

func TestGenerateDockerfile_UnknownTypeFallsBackToNode(t *testing.T) {
	assert.Equal(t, GenerateDockerfile(domain.ProjectTypeNode), GenerateDockerfile(domain.ProjectTypeDocker))
}

func TestInternalPort(t *testing.T) {
	assert.Equal(t, 3000, InternalPort(domain.ProjectTypeNode, 0))
	assert.Equal(t, 3000, InternalPort(domain.ProjectTypeReact, 9999))
	assert.Equal(t, 3000, InternalPort(domain.ProjectTypeNextJS, 0))
	assert.Equal(t, 5000, InternalPort(domain.ProjectTypeFlask, 0))
	assert.Equal(t, 80, InternalPort(domain.ProjectTypeStatic, 0))
	assert.Equal(t, 8000, InternalPort(domain.ProjectTypeDjango, 0))
	assert.Equal(t, 8123, InternalPort(domain.ProjectTypeDjango, 8123))
	assert.Equal(t, 8000, InternalPort(domain.ProjectTypeDocker, 0))
}

func TestRuntimeEnv_Node(t *testing.T) {
	env := RuntimeEnv(domain.ProjectTypeNode, map[string]string{"API_KEY": "secret"}, 3000)

	assert.Equal(t, "3000", env["PORT"])
	assert.Equal(t, "production", env["NODE_ENV"])
	assert.Equal(t, "secret", env["API_KEY"])
}

func TestRuntimeEnv_DjangoUserOverride(t *testing.T) {
	env := RuntimeEnv(domain.ProjectTypeDjango, map[string]string{
		"DJANGO_SETTINGS_MODULE": "myproject.settings",
	}, 8000)

	assert.Equal(t, "myproject.settings", env["DJANGO_SETTINGS_MODULE"])
	assert.Equal(t, "False", env["DEBUG"])
	assert.Equal(t, "*", env["ALLOWED_HOSTS"])
}

func TestRuntimeEnv_Flask(t *testing.T) {
	env := RuntimeEnv(domain.ProjectTypeFlask, nil, 5000)

	assert.Equal(t, "production", env["FLASK_ENV"])
	assert.Equal(t, "app.py", env["FLASK_APP"])
	assert.Equal(t, "5000", env["PORT"])
}

func TestRuntimeEnv_FastAPI(t *testing.T) {
	env := RuntimeEnv(domain.ProjectTypeFastAPI, nil, 8000)

	assert.Equal(t, "8000", env["PORT"])
	assert.Equal(t, "0.0.0.0", env["HOST"])
}

func TestRuntimeEnv_DockerUntouched(t *testing.T) {
	env := RuntimeEnv(domain.ProjectTypeDocker, map[string]string{"FOO": "bar"}, 8000)

	assert.Equal(t, map[string]string{"FOO": "bar"}, env)
}

func TestStartupKeywords(t *testing.T) {
	assert.Contains(t, StartupKeywords(domain.ProjectTypeNode), "Listening on")
	assert.Contains(t, StartupKeywords(domain.ProjectTypeDjango), "Starting development server")
	assert.Contains(t, StartupKeywords(domain.ProjectTypeFlask), "Serving Flask app")
	assert.Contains(t, StartupKeywords(domain.ProjectTypeFastAPI), "Uvicorn running on")
	assert.Contains(t, StartupKeywords(domain.ProjectTypeStatic), "worker process")
	assert.NotEmpty(t, StartupKeywords(domain.ProjectTypeDocker))
}
