// Package database provides the SQLite catalog of parsed image records.
//
// Each record is stored under its file path together with its dedup
// identity, a few indexed columns (source, model, sampler, dimensions) and
// the full record as JSON. The database uses WAL mode for concurrent reads.
package database
