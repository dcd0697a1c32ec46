// Package artifact provides ArtifactStore implementations for binary blobs
// produced during runs: files generated by code executions, downloads from a
// remote session pool, and other attachments. The in-memory store suits tests
// and prototypes; durable stores can be plugged via the core.ArtifactStore
// interface.
package artifact
