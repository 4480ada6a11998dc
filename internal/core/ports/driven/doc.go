// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - DocumentLoader: Extracts ordered text segments from a PDF
//   - VectorStore: Per-document index lifecycle (list, create, delete, describe)
//   - IndexHandle: Data-plane access to one index (stats, upsert, query)
//   - EmbeddingService: Generates fixed-dimension vectors
//   - LLMService: Generates answers from the structured prompt
//   - PostProcessorPipeline: Chunking and metadata sanitization
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - PromptStore: User-editable prompts. Built-in defaults are used without it.
//   - DocumentRegistry, ChatHistoryStore: Session persistence for the request layer.
//   - ConfigStore: Application configuration.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
