package core

// ArtifactStore persists binary blobs (files produced by code executions,
// downloads from a remote session pool, attachments) scoped per session.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}
