// Package chunker provides a recursive character text splitting processor.
//
// Text is split on the first separator that occurs in it (paragraph, then line,
// then word, then character), small pieces are merged back up to the chunk size,
// and pieces that are still too large are split again with the next separator.
// Consecutive chunks share up to the configured overlap.
package chunker

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried in order: paragraph, line, word, character.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Processor splits document segments into bounded, overlapping chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator list. The list should end with ""
// so that any text can be split down to single characters.
func WithSeparators(seps ...string) Option {
	return func(p *Processor) {
		if len(seps) > 0 {
			p.separators = seps
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits every segment of the document into chunks.
// Input chunks are ignored; this processor creates new chunks from the segments.
// Chunks inherit a copy of their segment's metadata.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	position := 0

	for i := range doc.Segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seg := &doc.Segments[i]
		for _, text := range p.SplitText(seg.Content) {
			chunks = append(chunks, domain.Chunk{
				ID:           uuid.New().String(),
				DocumentHash: doc.Hash,
				DocumentName: doc.Name,
				Content:      text,
				Position:     position,
				Metadata:     copyMetadata(seg.Metadata),
			})
			position++
		}
	}

	return chunks, nil
}

// SplitText splits text into chunks of at most chunkSize characters.
// Whitespace-only chunks are dropped.
func (p *Processor) SplitText(text string) []string {
	return p.split(text, p.separators)
}

func (p *Processor) split(text string, separators []string) []string {
	// Pick the first separator present in the text.
	separator := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			rest = separators[i+1:]
			break
		}
	}

	var (
		final []string
		good  []string
	)
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < p.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, p.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, p.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, p.merge(good)...)
	}
	return final
}

// merge joins small pieces into chunks no longer than chunkSize, carrying
// up to overlap characters from the end of one chunk into the next.
func (p *Processor) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > p.chunkSize && len(current) > 0 {
			if text := strings.TrimSpace(strings.Join(current, "")); text != "" {
				out = append(out, text)
			}
			for total > p.overlap || (total+n > p.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if text := strings.TrimSpace(strings.Join(current, "")); text != "" {
		out = append(out, text)
	}
	return out
}

// splitKeepSeparator splits text on sep, attaching each separator to the
// piece that follows it so that joining the pieces restores the text.
// An empty separator splits into single characters.
func splitKeepSeparator(text, sep string) []string {
	if text == "" {
		return nil
	}
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, part := range parts[1:] {
		out = append(out, sep+part)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func copyMetadata(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
