// Package normalisers provides document loaders that turn files on disk into
// ordered text segments ready for chunking.
package normalisers
