package background

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryMatching(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.RegisterGeneratedScene(ctx, SceneMetadata{Setting: "lab", Mood: "calm", RequestPrompt: "p", ImageURL: "https://a/1.png"}, ""))
	require.NoError(t, r.RegisterGeneratedScene(ctx, SceneMetadata{Setting: "lab", Mood: "calm", RequestPrompt: "p", ImageURL: "https://a/2.png"}, ""))

	a, err := r.FindAsset(ctx, AssetQuery{Setting: "lab", Prompt: "p"})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "https://a/2.png", a.ImageURL)

	a, _ = r.FindAsset(ctx, AssetQuery{Setting: "lab", Mood: "dramatic", Prompt: "p"})
	assert.Nil(t, a)
	a, _ = r.FindAsset(ctx, AssetQuery{Setting: "lab", Prompt: "other"})
	assert.Nil(t, a)

	a, _ = r.FindAsset(ctx, AssetQuery{Setting: "lab", Prompt: "p"})
	require.NoError(t, r.RecordUsage(ctx, a.ID, ""))
	assert.Equal(t, 1, r.Uses(a.ID))
	assert.Zero(t, r.Uses("missing"))
}

func TestMemoryRegistryMatchesOnTags(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	require.NoError(t, r.RegisterGeneratedScene(ctx, SceneMetadata{Setting: "warehouse", RequestPrompt: "night shift", Tags: []string{"scene-warehouse", "hero"}, ImageURL: "https://a/hero.png"}, ""))
	require.NoError(t, r.RegisterGeneratedScene(ctx, SceneMetadata{Setting: "warehouse", Tags: []string{"scene-warehouse"}, ImageURL: "https://a/plain.png"}, ""))
	require.NoError(t, r.RegisterGeneratedScene(ctx, SceneMetadata{Setting: "lab", Tags: []string{"scene-lab", "hero"}, ImageURL: "https://a/lab.png"}, ""))

	a, err := r.FindAsset(ctx, AssetQuery{Setting: "warehouse", Tags: []string{"scene-warehouse", "hero"}})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "https://a/hero.png", a.ImageURL)

	a, _ = r.FindAsset(ctx, AssetQuery{Setting: "warehouse", Tags: []string{"scene-warehouse"}})
	require.NotNil(t, a)
	assert.Equal(t, "https://a/plain.png", a.ImageURL)

	a, _ = r.FindAsset(ctx, AssetQuery{Setting: "warehouse", Tags: []string{"rooftop"}})
	assert.Nil(t, a)

	a, _ = r.FindAsset(ctx, AssetQuery{Setting: "warehouse", Prompt: "day shift", Tags: []string{"scene-warehouse", "hero"}})
	assert.Nil(t, a)
}

func TestRepoFindAsset(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := NewRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM scene_assets")).
		WithArgs("warehouse", "", "night shift", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url", "setting", "tags"}).
			AddRow("a-1", "https://img/a.png", "warehouse", "{scene-warehouse,hero}"))

	a, err := reg.FindAsset(ctx, AssetQuery{Setting: "warehouse", Prompt: "night shift"})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "a-1", a.ID)
	assert.Equal(t, []string{"scene-warehouse", "hero"}, a.Tags)

	mock.ExpectQuery(regexp.QuoteMeta("tags && $4::text[]")).
		WithArgs("warehouse", "calm", "", pq.Array([]string{"scene-warehouse", "mood-calm"})).
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url", "setting", "tags"}).
			AddRow("a-2", "https://img/b.png", "warehouse", "{scene-warehouse,mood-calm}"))

	a, err = reg.FindAsset(ctx, AssetQuery{Setting: "warehouse", Mood: "calm", Tags: []string{"scene-warehouse", "mood-calm"}})
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "a-2", a.ID)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "image_url", "setting", "tags"}))

	a, err = reg.FindAsset(ctx, AssetQuery{ID: "nope"})
	require.NoError(t, err)
	assert.Nil(t, a)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs("boom").
		WillReturnError(errors.New("conn reset"))

	_, err = reg.FindAsset(ctx, AssetQuery{ID: "boom"})
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reg := NewRepo(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE scene_assets")).
		WithArgs("a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, reg.RecordUsage(ctx, "a-1", "tok"))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scene_assets")).
		WithArgs(sqlmock.AnyArg(), "https://img/a.png", "lab", "", "clean bench", "Clean bench, photo", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, reg.RegisterGeneratedScene(ctx, SceneMetadata{
		Setting:       "lab",
		RequestPrompt: "clean bench",
		Prompt:        "Clean bench, photo",
		ImageURL:      "https://img/a.png",
		Tags:          []string{"scene-lab"},
		Products:      []string{"p-1"},
	}, ""))

	assert.NoError(t, mock.ExpectationsWereMet())
}
