package domain

import "time"

// Answer is the result of a retrieval-augmented question.
type Answer struct {
	// Text is the generated answer, returned verbatim.
	Text string `json:"answer"`

	// Sources are the leading retrieved excerpts.
	Sources []Source `json:"sources"`
}

// Source is a truncated excerpt supporting an answer.
type Source struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// ProcessResult reports the outcome of indexing a document.
type ProcessResult struct {
	// Hash identifies the processed document.
	Hash DocumentHash `json:"pdf_hash"`

	// IndexName is the index that now serves the document.
	IndexName string `json:"index_name,omitempty"`

	// ChunkCount is the number of chunks written; zero when IsExisting.
	ChunkCount int `json:"chunk_count"`

	// IsExisting is true when a populated index already existed.
	IsExisting bool `json:"is_existing"`
}

// ActiveDocument is the document a session is working with.
type ActiveDocument struct {
	Hash       DocumentHash `json:"pdf_hash"`
	Name       string       `json:"pdf_name"`
	Path       string       `json:"-"`
	Processed  bool         `json:"is_processed"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

// ChatEntry records one question and its answer.
type ChatEntry struct {
	ID           int64        `json:"id,omitempty"`
	DocumentHash DocumentHash `json:"pdf_hash"`
	Question     string       `json:"question"`
	Answer       string       `json:"answer"`

	// ResponseTime is the answer latency in seconds, rounded to two decimals.
	ResponseTime float64   `json:"response_time"`
	Sources      []Source  `json:"sources"`
	Timestamp    time.Time `json:"timestamp"`
}
