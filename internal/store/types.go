package store

import "time"

// Stats holds statistics about the indexed data.
type Stats struct {
	FileCount   int       `json:"file_count"`
	SymbolCount int       `json:"symbol_count"`
	EntryCount  int       `json:"entry_count"`
	BaseDir     string    `json:"base_dir,omitempty"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// IndexMetadata holds metadata written to index.json beside the database.
type IndexMetadata struct {
	Version     string    `json:"version"`
	BaseDir     string    `json:"base_dir"`
	IndexedAt   time.Time `json:"indexed_at"`
	FileCount   int       `json:"file_count"`
	SymbolCount int       `json:"symbol_count"`
	Files       []string  `json:"files"` // Indexed files, relative to BaseDir
}

// Options controls how a store is opened.
type Options struct {
	// ReadOnly rejects writes and never creates the database.
	ReadOnly bool
}
