package detect

import (
	"strings"

	"github.com/dess-cd/dess/domain"
)

// dockerfileTemplates maps each project type to a build recipe. Every runtime
// command branches at container start on which entry file is actually present,
// so one generated Dockerfile tolerates several layout conventions within a
// stack.
var dockerfileTemplates = map[domain.ProjectType]string{
	domain.ProjectTypeDjango: `
FROM python:3.11-slim

WORKDIR /app

RUN apt-get update && apt-get install -y \
    gcc \
    default-libmysqlclient-dev \
    pkg-config \
    && rm -rf /var/lib/apt/lists/*

COPY requirements.txt .

RUN pip install --no-cache-dir -r requirements.txt

COPY . .

RUN if [ -f manage.py ]; then python manage.py collectstatic --noinput || echo "No static files configured"; fi

EXPOSE 8000

CMD sh -c 'if [ -f manage.py ]; then echo "Running Django migrations..." && python manage.py migrate --noinput || echo "Migrations failed"; echo "Starting Django server..." && python manage.py runserver 0.0.0.0:8000; else echo "manage.py not found. Is this a valid Django project?"; echo "Available files:"; ls -la /app; sleep 3600; fi'
`,

	domain.ProjectTypeReact: `
# Build stage
FROM node:18-alpine AS builder

WORKDIR /app

COPY package*.json ./

RUN if [ -f package-lock.json ]; then npm ci; else npm install; fi

COPY . .

RUN npm run build || echo "Build failed, continuing..."

# Production stage
FROM node:18-alpine AS production

WORKDIR /app

COPY package*.json ./

RUN if [ -f package-lock.json ]; then npm ci --omit=dev; else npm install --omit=dev; fi

COPY --from=builder /app/build ./build 2>/dev/null || echo "No build folder, copying all files"
COPY --from=builder /app/public ./public 2>/dev/null || echo "No public folder"

RUN if [ ! -d build ]; then rm -rf /app/* && echo "Copying source files..."; fi
COPY . .

EXPOSE 3000

CMD sh -c 'if [ -d build ] && command -v serve >/dev/null; then echo "Serving static build..." && npx serve -s build -l 3000; elif grep -q "\"start\"" package.json; then echo "Running npm start..." && npm start; else echo "Starting development server..." && npm run dev || npm start; fi'
`,

	domain.ProjectTypeNode: `
FROM node:18-alpine

WORKDIR /app

COPY package*.json ./

RUN if [ -f package-lock.json ]; then npm ci --omit=dev; else npm install --omit=dev; fi

COPY . .

EXPOSE 3000

CMD sh -c 'if [ -f package.json ] && grep -q "\"start\"" package.json; then echo "Running npm start..." && npm start; elif [ -f app.js ]; then echo "Running node app.js..." && node app.js; elif [ -f server.js ]; then echo "Running node server.js..." && node server.js; elif [ -f index.js ] && ! grep -q "\"main\".*\"index.js\".*\"express\"" package.json; then echo "Running node index.js..." && node index.js; else echo "WARNING: this looks like a library, not an application." && echo "Deploying requires an application with a web server." && echo "Available files:" && ls -la /app && sleep 3600; fi'
`,

	domain.ProjectTypeNextJS: `
FROM node:18-alpine AS deps
WORKDIR /app
COPY package*.json ./
RUN npm ci

FROM node:18-alpine AS builder
WORKDIR /app
COPY --from=deps /app/node_modules ./node_modules
COPY . .
RUN npm run build

FROM node:18-alpine AS runner
WORKDIR /app

ENV NODE_ENV production

RUN addgroup --system --gid 1001 nodejs
RUN adduser --system --uid 1001 nextjs

COPY --from=builder /app/public ./public
COPY --from=builder --chown=nextjs:nodejs /app/.next/standalone ./
COPY --from=builder --chown=nextjs:nodejs /app/.next/static ./.next/static

USER nextjs

EXPOSE 3000

CMD ["node", "server.js"]
`,

	domain.ProjectTypeFlask: `
FROM python:3.11-slim

WORKDIR /app

RUN apt-get update && apt-get install -y \
    gcc \
    && rm -rf /var/lib/apt/lists/*

COPY requirements.txt* .

RUN if [ -f requirements.txt ]; then pip install --no-cache-dir -r requirements.txt; else pip install flask; fi

COPY . .

EXPOSE 5000

CMD sh -c 'if [ -f app.py ]; then echo "Running Flask app.py..." && python app.py; elif [ -f main.py ]; then echo "Running Flask main.py..." && python main.py; elif [ -f run.py ]; then echo "Running Flask run.py..." && python run.py; else echo "Running Flask with auto-discovery..." && flask run --host=0.0.0.0 --port=5000; fi'
`,

	domain.ProjectTypeFastAPI: `
FROM python:3.11-slim

WORKDIR /app

RUN apt-get update && apt-get install -y \
    gcc \
    && rm -rf /var/lib/apt/lists/*

COPY requirements.txt* .

RUN if [ -f requirements.txt ]; then pip install --no-cache-dir -r requirements.txt; else pip install fastapi uvicorn; fi

COPY . .

EXPOSE 8000

CMD sh -c 'if [ -f main.py ]; then echo "Running FastAPI main.py..." && uvicorn main:app --host 0.0.0.0 --port 8000; elif [ -f app.py ]; then echo "Running FastAPI app.py..." && uvicorn app:app --host 0.0.0.0 --port 8000; elif [ -f api.py ]; then echo "Running FastAPI api.py..." && uvicorn api:app --host 0.0.0.0 --port 8000; else echo "No FastAPI entry file found. Available files:" && ls -la /app && sleep 3600; fi'
`,

	domain.ProjectTypeStatic: `
FROM nginx:alpine

COPY . /usr/share/nginx/html

EXPOSE 80

CMD ["nginx", "-g", "daemon off;"]
`,
}

// GenerateDockerfile returns the Dockerfile text for the given project type.
// Unknown types get the Node template, which copes with most repositories.
func GenerateDockerfile(projectType domain.ProjectType) string {
	template, ok := dockerfileTemplates[projectType]
	if !ok {
		template = dockerfileTemplates[domain.ProjectTypeNode]
	}
	return strings.TrimSpace(template) + "\n"
}
