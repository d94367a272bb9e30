package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"GridSpend/internal/domain/models"
	domrepo "GridSpend/internal/domain/repository"
	applogger "GridSpend/pkg/logger"
)

// FSModelStore persists model artifacts as JSON files, one per granularity.
// Save writes to a temp file in the same directory and renames it over the
// target, so a concurrent Load never sees a partial artifact.
type FSModelStore struct {
	dir string
	l   *applogger.Logger
}

var _ domrepo.ModelStore = (*FSModelStore)(nil)

func NewFSModelStore(dir string) *FSModelStore {
	return &FSModelStore{dir: dir}
}

// SetLogger injects a structured logger.
func (s *FSModelStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FSModelStore) path(g models.Granularity) string {
	return filepath.Join(s.dir, fmt.Sprintf("model_%s.json", g))
}

func (s *FSModelStore) Save(_ context.Context, a *models.ModelArtifact) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("model store dir: %w", err)
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	target := s.path(a.Granularity)
	tmp, err := os.CreateTemp(s.dir, "model_*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace artifact: %w", err)
	}
	if s.l != nil {
		s.l.Info("model artifact saved",
			applogger.String("granularity", string(a.Granularity)),
			applogger.String("path", target),
			applogger.String("schema", a.SchemaFingerprint),
			applogger.Any("calibration", a.Calibration),
		)
	}
	return nil
}

func (s *FSModelStore) Load(_ context.Context, g models.Granularity) (*models.ModelArtifact, error) {
	data, err := os.ReadFile(s.path(g))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a models.ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Granularity != g {
		return nil, fmt.Errorf("artifact granularity %q does not match %q", a.Granularity, g)
	}
	return &a, nil
}
