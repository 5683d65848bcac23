// Package memory implements a personal semantic-memory layer: durable
// insights distilled from raw text, embedded as vectors, stored with
// deduplication, and retrieved by similarity.
//
// Architecture:
//   - Store: keyed, deduplicated record collection (SQLite for local use)
//   - Embedder: text-to-vector conversion (OpenAI API, local ONNX, or mock)
//   - Extractor: LLM-backed insight distillation
//   - Index: optional vector index narrowing search candidates
//
// The engine package's Manager orchestrates these into the full
// extract -> embed -> store pipeline, similarity search, and corpus
// clustering. Hosts talk to the Manager and never touch Store or
// Embedder directly, so backends swap without host changes (e.g.
// SQLite locally, a server-side store in production).
package memory
