package node

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Klingon-tech/mysterybox/config"
	"github.com/Klingon-tech/mysterybox/internal/storage"
)

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// openDB opens the state store for backend at path.
func openDB(backend, path string) (storage.DB, error) {
	switch backend {
	case config.BackendBadger, "":
		db, err := storage.NewBadger(path, storage.WithSyncWrites())
		if err != nil {
			return nil, fmt.Errorf("open badger at %s: %w", path, err)
		}
		return db, nil
	case config.BackendBolt:
		db, err := storage.NewBolt(path)
		if err != nil {
			return nil, fmt.Errorf("open bolt at %s: %w", path, err)
		}
		return db, nil
	case config.BackendMemory:
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown db backend %q", backend)
	}
}

// loadOrWriteDeployment reads the deployment file. When it does not exist,
// the built-in deployment for the network is written there first so later
// runs hash the same document. created reports whether the file was written.
func loadOrWriteDeployment(cfg *config.Config) (dep *config.Deployment, created bool, err error) {
	path := expandHome(cfg.DeploymentFile())
	dep, err = config.LoadDeployment(path)
	if err == nil {
		return dep, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	dep, err = config.DeploymentFor(cfg.Network)
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, false, fmt.Errorf("creating deployment dir: %w", err)
	}
	if err := dep.Save(path); err != nil {
		return nil, false, err
	}
	return dep, true, nil
}
