package handlers

import (
	"metapick/internal/database"
	"metapick/internal/indexer"
	"metapick/internal/stats"
)

// Handlers serves the statistics store over HTTP. The catalog database and
// the indexer are optional; endpoints that need them answer 404 or report
// ready when they are nil.
type Handlers struct {
	store   *stats.Store
	db      *database.Database
	indexer *indexer.Indexer
}

func New(store *stats.Store, db *database.Database, idx *indexer.Indexer) *Handlers {
	return &Handlers{
		store:   store,
		db:      db,
		indexer: idx,
	}
}
