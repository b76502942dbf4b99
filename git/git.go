// Package git provides the repository clone operations used by the
// deployment pipeline.
package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dess-cd/dess/config"
)

// ErrCloneFailed indicates every branch fallback attempt was exhausted.
var ErrCloneFailed = errors.New("git clone failed")

type GitService struct {
	config *config.Config
}

func NewGitService(cfg *config.Config) *GitService {
	// Interactive credential prompts would hang the pipeline; disable them
	// for any transport that shells out.
	os.Setenv("GIT_TERMINAL_PROMPT", "0")
	return &GitService{config: cfg}
}

// CloneWithFallback shallow-clones repoURL into workingDir. If the requested
// branch does not exist it retries with the conventional alternate name
// (master<->main) and finally with the repository's default branch. Returns
// the branch spec that succeeded ("" means repository default); on total
// failure the error aggregates all attempts.
func (s *GitService) CloneWithFallback(ctx context.Context, repoURL, branch, workingDir string) (string, error) {
	attempts := cloneAttempts(branch)

	var failures []string
	for _, attemptBranch := range attempts {
		err := s.cloneOnce(ctx, repoURL, attemptBranch, workingDir)
		if err == nil {
			slog.Info("Repository cloned",
				"layer", "git",
				"operation", "clone",
				"repo_url", repoURL,
				"branch", describeBranch(attemptBranch),
				"working_dir", workingDir,
			)
			return attemptBranch, nil
		}

		slog.Warn("Clone attempt failed",
			"layer", "git",
			"operation", "clone",
			"repo_url", repoURL,
			"branch", describeBranch(attemptBranch),
			"error", err,
		)
		failures = append(failures, fmt.Sprintf("branch %s: %v", describeBranch(attemptBranch), err))

		// A partial clone leaves the directory non-empty; clear it before
		// the next attempt.
		if removeErr := os.RemoveAll(workingDir); removeErr != nil {
			return "", fmt.Errorf("failed to clean working dir after clone attempt: %w", removeErr)
		}
	}

	return "", fmt.Errorf("%w for %s after %d attempts: %s",
		ErrCloneFailed, repoURL, len(attempts), strings.Join(failures, "; "))
}

func (s *GitService) cloneOnce(ctx context.Context, repoURL, branch, workingDir string) error {
	cloneCtx, cancel := context.WithTimeout(ctx, s.config.GitTimeout)
	defer cancel()

	cloneOptions := &git.CloneOptions{
		URL:          repoURL,
		SingleBranch: true,
		Depth:        1,
	}
	if branch != "" {
		cloneOptions.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	_, err := git.PlainCloneContext(cloneCtx, workingDir, false, cloneOptions)
	return err
}

// cloneAttempts returns the ordered branch specs to try. The empty string
// means "repository default".
func cloneAttempts(branch string) []string {
	switch branch {
	case "":
		return []string{""}
	case "main":
		return []string{"main", "master", ""}
	case "master":
		return []string{"master", "main", ""}
	default:
		// Unconventional branch names fall back to main, then the default.
		return []string{branch, "main", ""}
	}
}

func describeBranch(branch string) string {
	if branch == "" {
		return "(repository default)"
	}
	return branch
}

// LatestCommit returns the HEAD commit hash of a cloned working directory.
func (s *GitService) LatestCommit(workingDir string) (string, error) {
	repo, err := git.PlainOpen(workingDir)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "latest_commit",
			"working_dir", workingDir,
			"error", err)
		return "", err
	}

	ref, err := repo.Head()
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "git",
			"operation", "latest_commit",
			"working_dir", workingDir,
			"error", err)
		return "", err
	}

	return ref.Hash().String(), nil
}
