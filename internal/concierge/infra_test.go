package concierge

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovarama1992/scene-concierge/internal/domain"
)

func TestRepoSaveMessage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	row := &TranscriptRow{
		ViewerID:   "v1",
		PersonaKey: "maria-santos",
		SessionID:  "mock-1",
		Message: domain.Message{
			ID:        "m1",
			Role:      domain.RoleAgent,
			Content:   "Here you go",
			Timestamp: ts,
			Directive: domain.ResetScene{},
		},
	}

	mock.ExpectExec("INSERT INTO transcript_messages").
		WithArgs("m1", "v1", "maria-santos", "mock-1", "agent", "Here you go", `{"action":"reset-scene","payload":{}}`, ts).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, NewRepo(db).SaveMessage(context.Background(), row))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoSaveMessageWithoutDirective(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO transcript_messages").
		WithArgs("m2", "v1", "anonymous", "", "user", "hello", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewRepo(db).SaveMessage(context.Background(), &TranscriptRow{
		ViewerID:   "v1",
		PersonaKey: "anonymous",
		Message:    domain.Message{ID: "m2", Role: domain.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepoGetHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "role", "content", "ui_directive", "created_at"}).
		AddRow("m1", "user", "where is my order", nil, ts).
		AddRow("m2", "agent", "Here is your order", `{"action":"SHOW_ORDER_STATUS","payload":{"orderStatus":{"orderId":"RPO-1","status":"processing"}}}`, ts.Add(time.Second))

	mock.ExpectQuery("SELECT id, role, content, ui_directive, created_at").
		WithArgs("v1", "maria-santos").
		WillReturnRows(rows)

	msgs, err := NewRepo(db).GetHistory(context.Background(), "v1", "maria-santos")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Nil(t, msgs[0].Directive)

	status, ok := msgs[1].Directive.(domain.ShowOrderStatus)
	require.True(t, ok)
	assert.Equal(t, "RPO-1", status.OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryTranscript(t *testing.T) {
	tr := NewMemoryTranscript()
	ctx := context.Background()
	require.NoError(t, tr.SaveMessage(ctx, &TranscriptRow{ViewerID: "a", PersonaKey: "p", Message: domain.Message{ID: "1"}}))
	require.NoError(t, tr.SaveMessage(ctx, &TranscriptRow{ViewerID: "b", PersonaKey: "p", Message: domain.Message{ID: "2"}}))

	msgs, err := tr.GetHistory(ctx, "a", "p")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "1", msgs[0].ID)

	msgs, err = tr.GetHistory(ctx, "c", "p")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
