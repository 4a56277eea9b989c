package concierge

import (
	"context"
	"database/sql"
	"sync"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

type repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) Transcript {
	return &repo{db: db}
}

func (r *repo) SaveMessage(ctx context.Context, row *TranscriptRow) error {
	directive, err := domain.EncodeDirective(row.Message.Directive)
	if err != nil {
		return err
	}
	var d any
	if directive != nil {
		d = string(directive)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transcript_messages (id, viewer_id, persona_key, session_id, role, content, ui_directive, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		row.Message.ID,
		row.ViewerID,
		row.PersonaKey,
		row.SessionID,
		string(row.Message.Role),
		row.Message.Content,
		d,
		row.Message.Timestamp,
	)
	return err
}

func (r *repo) GetHistory(ctx context.Context, viewerID, personaKey string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, role, content, ui_directive, created_at
		FROM transcript_messages
		WHERE viewer_id = $1 AND persona_key = $2
		ORDER BY created_at ASC
	`, viewerID, personaKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Message{}
	for rows.Next() {
		var m domain.Message
		var role string
		var directive sql.NullString
		if err := rows.Scan(
			&m.ID,
			&role,
			&m.Content,
			&directive,
			&m.Timestamp,
		); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		if directive.Valid && directive.String != "" {
			d, err := domain.DecodeDirective([]byte(directive.String))
			if err != nil {
				return nil, err
			}
			m.Directive = d
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

// MemoryTranscript keeps the log in process when no database is configured.
type MemoryTranscript struct {
	mu   sync.RWMutex
	rows map[string][]domain.Message
}

func NewMemoryTranscript() *MemoryTranscript {
	return &MemoryTranscript{rows: make(map[string][]domain.Message)}
}

func (t *MemoryTranscript) SaveMessage(_ context.Context, row *TranscriptRow) error {
	k := row.ViewerID + "|" + row.PersonaKey
	t.mu.Lock()
	t.rows[k] = append(t.rows[k], row.Message)
	t.mu.Unlock()
	return nil
}

func (t *MemoryTranscript) GetHistory(_ context.Context, viewerID, personaKey string) ([]domain.Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]domain.Message{}, t.rows[viewerID+"|"+personaKey]...), nil
}
