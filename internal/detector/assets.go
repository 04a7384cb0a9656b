package detector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eleven-am/pose-bridge/internal/pose"
)

const modelExt = ".task"

// LocalAssets checks that a model asset exists under dir before handing
// the load to next. Model paths are resolved against dir and a missing
// ".task" extension is tried as well.
type LocalAssets struct {
	dir  string
	next Backend
}

func NewLocalAssets(dir string, next Backend) *LocalAssets {
	return &LocalAssets{dir: dir, next: next}
}

func (l *LocalAssets) Load(ctx context.Context, cfg pose.SessionConfig) (Model, error) {
	path, err := l.Resolve(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	cfg.ModelPath = path
	return l.next.Load(ctx, cfg)
}

// Resolve returns the path of the model relative to the asset directory.
// Absolute paths and paths that climb out of the directory are never looked
// up.
func (l *LocalAssets) Resolve(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", pose.NewInitError(pose.ErrModelNotFound, fmt.Errorf("%s is outside the model directory", name))
	}

	candidates := []string{name}
	if filepath.Ext(name) == "" {
		candidates = append(candidates, name+modelExt)
	}

	for _, candidate := range candidates {
		full := filepath.Join(l.dir, candidate)

		info, err := os.Stat(full)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", pose.NewInitError(pose.ErrBackendUnavailable, fmt.Errorf("stat %s: %w", full, err))
		}
	}

	return "", pose.NewInitError(pose.ErrModelNotFound, fmt.Errorf("%s not found in %s", name, l.dir))
}
