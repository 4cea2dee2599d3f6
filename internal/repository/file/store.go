// Package file stores ledgers as JSON documents in a state directory, one file per
// namespace, guarded by an advisory lock so several processes can share the directory.
package file

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/goccy/go-json"
	apperrors "github.com/vytor/ceplayer/internal/errors"
	"github.com/vytor/ceplayer/internal/logger"
	"github.com/vytor/ceplayer/internal/models"
	"github.com/vytor/ceplayer/internal/repository"
)

// Store manages the state directory with locking.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a new store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Ledgers() repository.LedgerRepository   { return ledgerRepo{s} }
func (s *Store) Learners() repository.LearnerRepository { return learnerRepo{s} }
func (s *Store) Close() error                           { return nil }

func (s *Store) ledgerPath(namespace string) string {
	return filepath.Join(s.dir, "ledgers", url.PathEscape(namespace)+".json")
}

func (s *Store) learnersPath() string {
	return filepath.Join(s.dir, "learners.json")
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dir, "state.lock")
}

// locked runs fn while holding both the in-process mutex and the directory's flock.
func (s *Store) locked(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.dir, "ledgers"), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	lockFile, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)

	return fn()
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// writeFile writes atomically via a temp file and skips the write when nothing changed.
func writeFile(path string, data []byte) error {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return nil
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmpFile.Name()
	_, err = tmpFile.Write(data)
	if err1 := tmpFile.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

type ledgerRepo struct{ s *Store }

func (r ledgerRepo) Load(ctx context.Context, namespace string) (*models.Ledger, error) {
	data, err := readFile(r.s.ledgerPath(namespace))
	if err != nil {
		logger.FromContext(ctx).WithPrefix("file_store").Error("failed to load ledger %s: %v", namespace, err)
		return nil, err
	}
	return repository.DecodeLedger(ctx, namespace, data), nil
}

func (r ledgerRepo) Update(ctx context.Context, namespace string, fn func(*models.Ledger) error) (*models.Ledger, error) {
	var out *models.Ledger
	err := r.s.locked(func() error {
		path := r.s.ledgerPath(namespace)
		data, err := readFile(path)
		if err != nil {
			return err
		}
		l := repository.DecodeLedger(ctx, namespace, data)
		if err := fn(l); err != nil {
			return err
		}
		encoded, err := json.MarshalIndent(l, "", "  ")
		if err != nil {
			return fmt.Errorf("encode ledger: %w", err)
		}
		if err := writeFile(path, encoded); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r ledgerRepo) Delete(_ context.Context, namespace string) error {
	return r.s.locked(func() error {
		err := os.Remove(r.s.ledgerPath(namespace))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete ledger: %w", err)
		}
		return nil
	})
}

type learnerRepo struct{ s *Store }

func (r learnerRepo) load() (map[string]models.Learner, error) {
	learners := make(map[string]models.Learner)
	data, err := readFile(r.s.learnersPath())
	if err != nil || data == nil {
		return learners, err
	}
	if err := json.Unmarshal(data, &learners); err != nil {
		return nil, fmt.Errorf("unmarshal learners: %w", err)
	}
	return learners, nil
}

func (r learnerRepo) update(fn func(map[string]models.Learner) error) error {
	return r.s.locked(func() error {
		learners, err := r.load()
		if err != nil {
			return err
		}
		if err := fn(learners); err != nil {
			return err
		}
		data, err := json.MarshalIndent(learners, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal learners: %w", err)
		}
		return writeFile(r.s.learnersPath(), data)
	})
}

func (r learnerRepo) Create(_ context.Context, learner models.Learner) error {
	return r.update(func(m map[string]models.Learner) error {
		if _, exists := m[learner.ID]; exists {
			return fmt.Errorf("learner %s already exists", learner.ID)
		}
		m[learner.ID] = learner
		return nil
	})
}

func (r learnerRepo) Get(_ context.Context, id string) (*models.Learner, error) {
	learners, err := r.load()
	if err != nil {
		return nil, err
	}
	l, ok := learners[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r learnerRepo) List(_ context.Context) ([]models.Learner, error) {
	learners, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Learner, 0, len(learners))
	for _, l := range learners {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r learnerRepo) UpdateStudent(_ context.Context, id string, info models.StudentInfo) error {
	return r.update(func(m map[string]models.Learner) error {
		l, ok := m[id]
		if !ok {
			return fmt.Errorf("learner %s: %w", id, apperrors.ErrNotFound)
		}
		l.Name, l.License, l.Email = info.Name, info.License, info.Email
		m[id] = l
		return nil
	})
}
