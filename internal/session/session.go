// Package session holds the short-term conversational memory of active
// sessions and flushes them to the durable archive when they end. The cache
// entry is the sole mutable copy of a live session; the archive is written
// once and never mutated.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"knowledgebase/internal/models"
)

const keyPrefix = "session:"

// Archiver persists a finished session's turns durably.
type Archiver interface {
	ArchiveSession(ctx context.Context, userID, sessionID string, turns []models.ConversationTurn) error
}

type Memory struct {
	cache   Cache
	archive Archiver
	ttl     time.Duration
}

// NewMemory wires session memory. archive may be nil for cache-only local
// deployments, in which case EndSession just clears the session.
func NewMemory(cache Cache, archive Archiver, ttl time.Duration) *Memory {
	return &Memory{cache: cache, archive: archive, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// AppendTurn records one completed turn. The session is created implicitly
// on its first turn and its TTL restarts on every append.
func (m *Memory) AppendTurn(ctx context.Context, sessionID string, turn models.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	b, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encoding turn: %w", err)
	}
	return m.cache.Append(ctx, sessionKey(sessionID), b, m.ttl)
}

// GetTurns returns the session's turns in submission order, most recent
// last. An expired or unknown session yields an empty sequence.
func (m *Memory) GetTurns(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	raw, err := m.cache.Range(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, err
	}
	turns := make([]models.ConversationTurn, 0, len(raw))
	for _, b := range raw {
		var turn models.ConversationTurn
		if err := json.Unmarshal(b, &turn); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("Dropping undecodable turn")
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Window returns the last n turns for prompt assembly.
func (m *Memory) Window(ctx context.Context, sessionID string, n int) ([]models.ConversationTurn, error) {
	turns, err := m.GetTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// EndSession flushes the session's turns to the archive and removes the
// cache entry. Calling it on an absent (or already-ended, or expired)
// session is a no-op, which makes duplicate end signals harmless.
func (m *Memory) EndSession(ctx context.Context, sessionID, userID string) error {
	turns, err := m.GetTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("reading session for archive: %w", err)
	}
	if len(turns) == 0 {
		return nil
	}
	if m.archive != nil {
		if err := m.archive.ArchiveSession(ctx, userID, sessionID, turns); err != nil {
			// Keep the cache entry so a retry can still archive the turns.
			return fmt.Errorf("archiving session: %w", err)
		}
	}
	if err := m.cache.Delete(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	log.Info().Str("session_id", sessionID).Int("turns", len(turns)).Msg("Session archived and cleared")
	return nil
}
