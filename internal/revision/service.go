// Package revision keeps a git history of every optimised version of an
// uploaded document, one repository per artifact.
package revision

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resumelab/api/internal/document"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const contentFile = "document.json"

// ErrNoHistory indicates no revision has been recorded for the artifact.
var ErrNoHistory = errors.New("revision history not found")

// Commit describes one recorded version.
type Commit struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	author  string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		author:  "resumelab",
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureBaseline records original as the first revision unless history
// already exists for artifactID.
func (s *Service) EnsureBaseline(artifactID string, original document.Document) error {
	lock := s.artifactLock(artifactID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(artifactID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("init repo: %w", err)
	}
	// HEAD is unborn here; the first commit creates main.
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		_ = os.RemoveAll(path)
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	if _, err := s.commit(repo, original, "Import original document"); err != nil {
		_ = os.RemoveAll(path)
		return err
	}
	return nil
}

// Record commits doc as the newest revision. EnsureBaseline must have run.
func (s *Service) Record(artifactID string, doc document.Document, message string) (Commit, error) {
	lock := s.artifactLock(artifactID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(artifactID)
	if err != nil {
		return Commit{}, err
	}
	hash, err := s.commit(repo, doc, message)
	if err != nil {
		return Commit{}, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Commit{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommit(commitObj), nil
}

// History lists revisions newest first; limit <= 0 means all.
func (s *Service) History(artifactID string, limit int) ([]Commit, error) {
	lock := s.artifactLock(artifactID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(artifactID)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Commit, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommit(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Document returns the document stored at revision hash (full or abbreviated).
func (s *Service) Document(artifactID, hash string) (document.Document, error) {
	lock := s.artifactLock(artifactID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(artifactID)
	if err != nil {
		return document.Document{}, err
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return document.Document{}, fmt.Errorf("%w: resolve %s: %v", ErrNoHistory, hash, err)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return document.Document{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	file, err := commitObj.File(contentFile)
	if err != nil {
		return document.Document{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return document.Document{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()
	return document.Decode(reader)
}

func (s *Service) open(artifactID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(artifactID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, artifactID)
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) commit(repo *git.Repository, doc document.Document, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	var payload bytes.Buffer
	if err := document.Encode(&payload, doc); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), contentFile), payload.Bytes(), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add content: %w", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  s.author,
			Email: s.author + "@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit content: %w", err)
	}
	return hash, nil
}

func (s *Service) repoPath(artifactID string) string {
	return filepath.Join(s.baseDir, filepath.Base(artifactID))
}

func (s *Service) artifactLock(artifactID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[artifactID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[artifactID] = lock
	return lock
}

func toCommit(commitObj *object.Commit) Commit {
	return Commit{
		Hash:      commitObj.Hash.String(),
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}
