// Package backends selects a task store implementation from configuration.
package backends

import (
	"fmt"

	"garment-studio/internal/config"
	"garment-studio/internal/taskstore"
	"garment-studio/internal/taskstore/memory"
	"garment-studio/internal/taskstore/sqlite"

	"github.com/sirupsen/logrus"
)

// Open returns the store named by cfg.Store.Driver.
func Open(cfg *config.Config) (taskstore.Store, error) {
	fields := logrus.Fields{"driver": cfg.Store.Driver}
	var (
		store taskstore.Store
		err   error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		path, perr := cfg.StorePath()
		if perr != nil {
			return nil, perr
		}
		fields["path"] = path
		store, err = sqlite.NewStore(path)
	case "memory":
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown task store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(fields).Info("Use task store")
	return store, nil
}
