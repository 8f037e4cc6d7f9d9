// Package store persists the inverted index of one index generation.
//
// A generation lives in a folder holding a single SQLite database
// (index.db). Three tables make up the index:
//
//   - docs: stored fields (path, filename) and the token count per document
//   - postings: (field, term) -> document, term frequency and positions
//   - meta: generation id, build time and the analyzer settings used
//
// Positions are roaring bitmaps serialized into a BLOB. A Writer fills a
// generation inside one transaction, so a Reader sees either the previous
// generation or the complete new one. Concurrent writers on one folder are
// rejected through a file lock (write.lock); readers never lock.
package store
