// Package redis implements a SessionStore backed by Redis. Session state and
// metadata live in one JSON document per session; the event history is an
// append-only Redis list so AppendEvent never rewrites the whole session.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agenthive/agenthive/core"
)

// Options configure the Redis session store.
type Options struct {
	// KeyPrefix namespaces all keys (e.g. "agenthive"). Keys become
	// "<prefix>:session:<id>" and "<prefix>:events:<id>".
	KeyPrefix string
	// TTL expires idle sessions; zero keeps them forever.
	TTL time.Duration
	// Timeout bounds each store operation.
	Timeout time.Duration
}

// Store is a Redis backed core.SessionStore. Safe for concurrent use; all
// multi-key updates go through a pipeline so state and history stay aligned.
type Store struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
}

// sessionDoc is the persisted form of a session minus its event list.
type sessionDoc struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
}

// NewStore creates a store from a Redis URL (redis://host:port/db), following
// the usual ParseURL construction so auth and TLS options ride along.
func NewStore(redisURL string, optFns ...func(o *Options)) (*Store, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewStoreFromClient(redis.NewClient(ropts), optFns...), nil
}

// NewStoreFromClient wraps an existing client (shared pools, sentinel, etc.).
func NewStoreFromClient(client *redis.Client, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: "agenthive", Timeout: 5 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{client: client, keyPrefix: opts.KeyPrefix, ttl: opts.TTL, timeout: opts.Timeout}
}

func (s *Store) sessionKey(id string) string { return s.keyPrefix + ":session:" + id }
func (s *Store) eventsKey(id string) string  { return s.keyPrefix + ":events:" + id }

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Create stores a fresh session document, overwriting any previous one and
// clearing its event history.
func (s *Store) Create(sessionID string) (*core.Session, error) {
	sess := core.NewSession(sessionID)
	ctx, cancel := s.opContext()
	defer cancel()

	doc, err := marshalDoc(sess)
	if err != nil {
		return nil, err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sessionID), doc, s.ttl)
	pipe.Del(ctx, s.eventsKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}
	return sess, nil
}

// Get loads the session, creating it lazily when absent (mirrors the
// in-memory store contract).
func (s *Store) Get(sessionID string) (*core.Session, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return s.Create(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var doc sessionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	sess := &core.Session{ID: doc.ID, State: doc.State, Created: doc.Created, Updated: doc.Updated, Metadata: doc.Metadata}
	if sess.State == nil {
		sess.State = map[string]any{}
	}
	if sess.Metadata == nil {
		sess.Metadata = map[string]string{}
	}

	items, err := s.client.LRange(ctx, s.eventsKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load session events %s: %w", sessionID, err)
	}
	sess.Events = make([]core.Event, 0, len(items))
	for _, item := range items {
		var ev core.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event in session %s: %w", sessionID, err)
		}
		sess.Events = append(sess.Events, ev)
	}
	return sess, nil
}

// AppendEvent pushes the event onto the session's history list.
func (s *Store) AppendEvent(sessionID string, ev core.Event) error {
	ctx, cancel := s.opContext()
	defer cancel()

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.eventsKey(sessionID), raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.eventsKey(sessionID), s.ttl)
		pipe.Expire(ctx, s.sessionKey(sessionID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append event to session %s: %w", sessionID, err)
	}
	return s.touch(ctx, sessionID, nil)
}

// ApplyDelta merges the key/value delta into the persisted session state.
func (s *Store) ApplyDelta(sessionID string, delta map[string]interface{}) error {
	ctx, cancel := s.opContext()
	defer cancel()
	return s.touch(ctx, sessionID, delta)
}

// Delete removes the session document and its event history.
func (s *Store) Delete(sessionID string) error {
	ctx, cancel := s.opContext()
	defer cancel()
	if _, err := s.client.Del(ctx, s.sessionKey(sessionID), s.eventsKey(sessionID)).Result(); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	return nil
}

// touch rewrites the session document applying an optional state delta and a
// fresh Updated timestamp. Document-level read-modify-write is acceptable
// here because per-session writers are serialized by the runner.
func (s *Store) touch(ctx context.Context, sessionID string, delta map[string]any) error {
	raw, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	var doc sessionDoc
	switch {
	case err == redis.Nil:
		doc = sessionDoc{ID: sessionID, State: map[string]any{}, Created: time.Now(), Metadata: map[string]string{}}
	case err != nil:
		return fmt.Errorf("load session %s: %w", sessionID, err)
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("decode session %s: %w", sessionID, err)
		}
		if doc.State == nil {
			doc.State = map[string]any{}
		}
	}
	for k, v := range delta {
		doc.State[k] = v
	}
	doc.Updated = time.Now()

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}
	if err := s.client.Set(ctx, s.sessionKey(sessionID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sessionID, err)
	}
	return nil
}

func marshalDoc(sess *core.Session) ([]byte, error) {
	doc := sessionDoc{ID: sess.ID, State: sess.State, Created: sess.Created, Updated: sess.Updated, Metadata: sess.Metadata}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	return raw, nil
}
