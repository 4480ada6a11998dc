// Package domain defines the core business entities for pdfqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentHash: The content-derived identity of an uploaded PDF
//   - Document and Segment: Loaded text with positional metadata
//   - Chunk: A bounded unit of text that is embedded and retrieved
//   - IndexSpec, IndexDescription, IndexStats: Remote index lifecycle values
//   - Answer and Source: The result of a retrieval-augmented question
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
