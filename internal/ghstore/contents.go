// Package ghstore keeps JSON collections in files of a GitHub repository.
// Every write carries the blob SHA it was based on, so a concurrent edit
// makes the later write fail instead of silently overwriting.
package ghstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/go-github/v66/github"
	"github.com/sirupsen/logrus"

	"github.com/zatyrani/zatyrani-backend/internal/apperrors"
)

// ErrStale is returned when the file changed since it was read.
var ErrStale = apperrors.Wrap(apperrors.ErrConflict, "Plik został zmieniony w międzyczasie, spróbuj ponownie")

// Contents reads and writes whole files.
type Contents interface {
	Get(ctx context.Context, path string) (data []byte, sha string, err error)
	Put(ctx context.Context, path string, data []byte, sha, message string) error
}

type githubContents struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

// NewGitHub returns Contents backed by the GitHub contents API.
func NewGitHub(token, owner, repo, branch string) Contents {
	return &githubContents{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   repo,
		branch: branch,
	}
}

func (g *githubContents) Get(ctx context.Context, path string) ([]byte, string, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, &github.RepositoryContentGetOptions{Ref: g.branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("get %s: %w", path, err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("get %s: path is a directory", path)
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	return []byte(content), file.GetSHA(), nil
}

func (g *githubContents) Put(ctx context.Context, path string, data []byte, sha, message string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: data,
		Branch:  github.String(g.branch),
	}

	var err error
	if sha == "" {
		_, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts)
	} else {
		opts.SHA = github.String(sha)
		_, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts)
	}
	if err == nil {
		return nil
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusConflict, http.StatusUnprocessableEntity:
			logrus.WithFields(logrus.Fields{"path": path, "sha": sha}).Warn("⚠️ Stale write rejected by GitHub")
			return ErrStale
		}
	}
	return fmt.Errorf("put %s: %w", path, err)
}

// Memory is an in-process Contents used when no GitHub token is configured
// and in tests. It applies the same SHA check as GitHub.
type Memory struct {
	mu    sync.Mutex
	files map[string]memoryFile
	seq   int
}

type memoryFile struct {
	data    []byte
	sha     string
	message string
}

func NewMemory() *Memory {
	return &Memory{files: make(map[string]memoryFile)}
}

func (m *Memory) Get(_ context.Context, path string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, "", nil
	}
	return append([]byte(nil), f.data...), f.sha, nil
}

func (m *Memory) Put(_ context.Context, path string, data []byte, sha, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files[path].sha != sha {
		return ErrStale
	}
	m.seq++
	m.files[path] = memoryFile{data: append([]byte(nil), data...), sha: fmt.Sprintf("mem-%d", m.seq), message: message}
	return nil
}

// LastMessage is the commit message of the latest write to path.
func (m *Memory) LastMessage(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path].message
}
