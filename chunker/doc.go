// Package chunker splits an ordered conversation into message-aligned text chunks.
//
// Chunking is deterministic and has no side effects. Messages are never split;
// the configured size is a soft bound that a single oversized message may exceed.
package chunker
