package background

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MemoryRegistry keeps generated scenes for the life of the process.
type MemoryRegistry struct {
	mu     sync.RWMutex
	assets []registered
}

type registered struct {
	Asset
	Mood   string
	Prompt string
	Uses   int
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{}
}

func (r *MemoryRegistry) FindAsset(_ context.Context, q AssetQuery) (*Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	best, bestShared := -1, -1
	for i := len(r.assets) - 1; i >= 0; i-- {
		a := r.assets[i]
		if q.ID != "" {
			if a.ID == q.ID {
				out := a.Asset
				return &out, nil
			}
			continue
		}
		if shared, ok := a.matches(q); ok && shared > bestShared {
			best, bestShared = i, shared
		}
	}
	if best < 0 {
		return nil, nil
	}
	out := r.assets[best].Asset
	return &out, nil
}

// matches reports whether a scene fits the query and how many context tags
// they share. A prompt pins the match to that prompt; without one the scene
// has to share at least one tag.
func (a registered) matches(q AssetQuery) (int, bool) {
	if a.Setting != q.Setting || (q.Mood != "" && a.Mood != q.Mood) {
		return 0, false
	}
	shared := sharedTags(a.Tags, q.Tags)
	if q.Prompt != "" {
		return shared, a.Prompt == q.Prompt
	}
	return shared, len(q.Tags) == 0 || shared > 0
}

func sharedTags(have, want []string) int {
	n := 0
	for _, w := range want {
		for _, h := range have {
			if h == w {
				n++
				break
			}
		}
	}
	return n
}

func (r *MemoryRegistry) RecordUsage(_ context.Context, id, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.assets {
		if r.assets[i].ID == id {
			r.assets[i].Uses++
			return nil
		}
	}
	return nil
}

func (r *MemoryRegistry) RegisterGeneratedScene(_ context.Context, meta SceneMetadata, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, registered{
		Asset: Asset{
			ID:       uuid.NewString(),
			ImageURL: meta.ImageURL,
			Setting:  meta.Setting,
			Tags:     append([]string(nil), meta.Tags...),
		},
		Mood:   meta.Mood,
		Prompt: meta.RequestPrompt,
	})
	return nil
}

// Uses reports how often an asset was served; zero when unknown.
func (r *MemoryRegistry) Uses(id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.assets {
		if a.ID == id {
			return a.Uses
		}
	}
	return 0
}

type repo struct {
	db *sql.DB
}

// NewRepo is the postgres scene registry over scene_assets.
func NewRepo(db *sql.DB) Registry {
	return &repo{db: db}
}

func (r *repo) FindAsset(ctx context.Context, q AssetQuery) (*Asset, error) {
	var row *sql.Row
	if q.ID != "" {
		row = r.db.QueryRowContext(ctx, `
			SELECT id, image_url, setting, tags
			FROM scene_assets
			WHERE id = $1
		`, q.ID)
	} else {
		tags := q.Tags
		if tags == nil {
			tags = []string{}
		}
		row = r.db.QueryRowContext(ctx, `
			SELECT id, image_url, setting, tags
			FROM scene_assets
			WHERE setting = $1
			  AND ($2 = '' OR mood = $2)
			  AND CASE WHEN $3 <> '' THEN request_prompt = $3
			           ELSE cardinality($4::text[]) = 0 OR tags && $4::text[] END
			  AND image_url NOT ILIKE '%placeholder%'
			ORDER BY cardinality(ARRAY(SELECT unnest(tags) INTERSECT SELECT unnest($4::text[]))) DESC,
			         usage_count DESC, created_at DESC
			LIMIT 1
		`, q.Setting, q.Mood, q.Prompt, pq.Array(tags))
	}

	var a Asset
	if err := row.Scan(&a.ID, &a.ImageURL, &a.Setting, pq.Array(&a.Tags)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *repo) RecordUsage(ctx context.Context, id, _ string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE scene_assets
		SET usage_count = usage_count + 1, last_used_at = now()
		WHERE id = $1
	`, id)
	return err
}

func (r *repo) RegisterGeneratedScene(ctx context.Context, meta SceneMetadata, _ string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scene_assets (id, image_url, setting, mood, request_prompt, generation_prompt, tags, product_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.NewString(),
		meta.ImageURL,
		meta.Setting,
		meta.Mood,
		meta.RequestPrompt,
		meta.Prompt,
		pq.Array(meta.Tags),
		pq.Array(meta.Products),
	)
	return err
}
