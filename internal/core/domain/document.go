package domain

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 8

// IndexNamePrefix prefixes every per-document index name.
const IndexNamePrefix = "pdf-"

// DocumentHash is the content-derived identity of a document.
// Identical bytes always produce the same hash regardless of filename.
type DocumentHash string

// ComputeHash returns the hash of raw document bytes.
func ComputeHash(data []byte) DocumentHash {
	sum := md5.Sum(data) //nolint:gosec // see import
	return DocumentHash(hex.EncodeToString(sum[:])[:HashLength])
}

// HashReader streams r into the digest and returns its hash.
func HashReader(r io.Reader) (DocumentHash, error) {
	h := md5.New() //nolint:gosec // see import
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return DocumentHash(hex.EncodeToString(h.Sum(nil))[:HashLength]), nil
}

// HashFile returns the hash of the file at path.
func HashFile(path string) (DocumentHash, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return HashReader(f)
}

// String returns the hash as a string.
func (h DocumentHash) String() string {
	return string(h)
}

// Validate checks the hash is a lowercase hex string of HashLength characters.
func (h DocumentHash) Validate() error {
	if len(h) != HashLength {
		return fmt.Errorf("%w: hash must be %d hex characters", ErrInvalidInput, HashLength)
	}
	for _, c := range h {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return fmt.Errorf("%w: hash %q is not hex", ErrInvalidInput, string(h))
		}
	}
	return nil
}

// IndexPrefix returns the prefix shared by every index built for this document.
func (h DocumentHash) IndexPrefix() string {
	return IndexNamePrefix + string(h)
}

// OwnsIndex reports whether an index name belongs to this document.
func (h DocumentHash) OwnsIndex(name string) bool {
	return strings.HasPrefix(name, h.IndexPrefix())
}

// IndexName returns the index name for a processing run started at t.
// The timestamp keeps names unique when a document is reprocessed.
func IndexName(h DocumentHash, t time.Time) string {
	return fmt.Sprintf("%s-%d", h.IndexPrefix(), t.Unix())
}

// Document is a loaded PDF ready for chunking.
type Document struct {
	// Hash is the content hash of the raw file.
	Hash DocumentHash

	// Name is the display name (base filename).
	Name string

	// Path is the location of the file on disk.
	Path string

	// Title is the human-readable title.
	Title string

	// Segments are the ordered text units produced by the loader.
	Segments []Segment

	// Metadata contains document-level key-value pairs.
	Metadata map[string]any

	// LoadedAt is when the loader produced the document.
	LoadedAt time.Time
}

// Content returns all segment text joined by blank lines.
func (d *Document) Content() string {
	parts := make([]string, 0, len(d.Segments))
	for i := range d.Segments {
		parts = append(parts, d.Segments[i].Content)
	}
	return strings.Join(parts, "\n\n")
}

// Segment is a contiguous piece of document text with its structural metadata,
// typically one page.
type Segment struct {
	// Content is the extracted text.
	Content string

	// Metadata describes where the text came from (page, origin, headings).
	Metadata map[string]any
}

// Chunk is the unit of embedding and retrieval.
type Chunk struct {
	// ID is the short unique identifier for the chunk.
	ID string

	// DocumentHash links to the parent Document.
	DocumentHash DocumentHash

	// DocumentName is the display name of the parent Document.
	DocumentName string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation for similarity search.
	Embedding []float32

	// Metadata contains sanitized key-value pairs stored alongside the vector.
	Metadata map[string]any
}
