package config

import (
	"log"

	"github.com/rawblock/wallet-gnn/internal/db"
	"github.com/rawblock/wallet-gnn/internal/graph"
	"github.com/rawblock/wallet-gnn/internal/store"
)

// OpenStore returns the transaction store selected by the configuration.
// PostgreSQL is preferred; when it is unreachable and DATA_DIR is set the
// CSV dataset is loaded instead. The returned *db.PostgresStore is nil
// unless PostgreSQL is in use, and the caller must Close it.
func (c *Config) OpenStore() (graph.Store, *db.PostgresStore, error) {
	if c.DatabaseURL != "" {
		dbConn, err := db.Connect(c.DatabaseURL)
		if err == nil {
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			return dbConn, dbConn, nil
		}
		if c.DataDir == "" {
			return nil, nil, err
		}
		log.Printf("Warning: Failed to connect to PostgreSQL, falling back to CSV dataset in %s. Error: %v", c.DataDir, err)
	}

	mem, err := store.LoadDir(c.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return mem, nil, nil
}
