package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stressguard/internal/config"
	"stressguard/internal/models"
	"stressguard/internal/storage"
)

type fakeGenerator struct {
	reply string
	err   error
	seen  [][]*schema.Message
}

func (f *fakeGenerator) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = append(f.seen, input)
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func TestToneFor(t *testing.T) {
	tests := []struct {
		score int
		want  Tone
	}{
		{0, ToneCalm},
		{40, ToneCalm},
		{41, ToneStructured},
		{70, ToneStructured},
		{71, ToneGrounding},
		{100, ToneGrounding},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToneFor(tt.score), "score %d", tt.score)
	}
}

func TestBuildMessagesCapsHistory(t *testing.T) {
	var history []models.ChatTurn
	for i := 0; i < 10; i++ {
		role := models.ChatRoleUser
		if i%2 == 1 {
			role = models.ChatRoleAssistant
		}
		history = append(history, models.ChatTurn{Role: role, Message: fmt.Sprintf("turn %d", i)})
	}
	msgs := BuildMessages("now", 85, history)

	require.Len(t, msgs, 1+MaxHistoryTurns+1)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "85/100")
	assert.Contains(t, msgs[0].Content, "grounding")
	assert.Equal(t, "turn 4", msgs[1].Content)
	assert.Equal(t, "turn 9", msgs[MaxHistoryTurns].Content)
	assert.Equal(t, schema.Assistant, msgs[MaxHistoryTurns].Role)
	assert.Equal(t, "now", msgs[len(msgs)-1].Content)
}

func TestRespondPersistsBothTurns(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, 1)
	gen := &fakeGenerator{reply: "  That sounds hard.  "}
	svc := NewService(db, NewModelResponder(gen), 6, time.Second)
	ctx := context.Background()

	got := svc.Respond(ctx, 1, "I feel overwhelmed", 55)
	assert.Equal(t, "That sounds hard.", got.Text)
	assert.Equal(t, ToneStructured, got.Tone)
	assert.False(t, got.Fallback)

	turns, err := svc.Transcript(ctx, 1)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, models.ChatRoleUser, turns[0].Role)
	assert.Equal(t, "I feel overwhelmed", turns[0].Message)
	assert.Equal(t, models.ChatRoleAssistant, turns[1].Role)
}

func TestRespondSendsAtMostSixPriorTurns(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, 1)
	gen := &fakeGenerator{reply: "ok"}
	svc := NewService(db, NewModelResponder(gen), 6, time.Second)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		svc.Respond(ctx, 1, fmt.Sprintf("msg %d", i), 20)
	}
	require.Len(t, gen.seen, 5)
	last := gen.seen[4]
	// system + 6 prior turns + new message
	require.Len(t, last, 8)
	assert.Equal(t, "msg 1", last[1].Content)
	assert.Equal(t, "msg 4", last[7].Content)
}

func TestRespondFallsBackOnFailure(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertUser(t, db, 1)
	ctx := context.Background()

	failing := NewService(db, NewModelResponder(&fakeGenerator{err: errors.New("boom")}), 6, time.Second)
	got := failing.Respond(ctx, 1, "hello", 90)
	assert.Equal(t, FallbackReply, got.Text)
	assert.True(t, got.Fallback)

	empty := NewService(db, NewModelResponder(&fakeGenerator{reply: "   "}), 6, time.Second)
	assert.Equal(t, FallbackReply, empty.Respond(ctx, 1, "hello", 10).Text)

	none := NewService(db, nil, 0, 0)
	assert.Equal(t, FallbackReply, none.Respond(ctx, 1, "hello", 10).Text)

	turns, err := none.Transcript(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, turns, 6)
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertUser(t *testing.T, db *sql.DB, id int64) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO users (id, username, password_hash, salt, role, created_at) VALUES (?, ?, '', '', 'employee', ?)`,
		id, fmt.Sprintf("user_%d", id), models.FormatTimestamp(time.Now()))
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
}
