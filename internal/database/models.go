package database

import (
	"time"

	"metapick/internal/record"
)

// StoredRecord is one catalog row.
type StoredRecord struct {
	Identity  string         `json:"identity"`
	Record    *record.Record `json:"record"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Filter narrows ListRecords. Empty fields match everything.
type Filter struct {
	Source string
	Model  string
	Limit  int
	Offset int
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)
