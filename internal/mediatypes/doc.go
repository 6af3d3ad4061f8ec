// Package mediatypes maps image file extensions to the metadata container
// formats metapick understands.
//
// It is a leaf package with no internal dependencies so both the raw
// metadata loader and the batch walker can share one extension table.
package mediatypes
