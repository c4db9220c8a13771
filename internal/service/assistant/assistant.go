package assistant

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"stressguard/internal/models"
)

// FallbackReply is returned whenever the responder is missing or fails.
const FallbackReply = "I'm sorry, I'm having trouble responding right now. " +
	"Please take a slow breath, and try again in a moment."

// Service wraps a Responder with transcript persistence. Respond never fails
// from the caller's point of view.
type Service struct {
	db           *sql.DB
	responder    Responder
	historyTurns int
	timeout      time.Duration
}

// NewService builds the assistant. A nil responder answers with FallbackReply.
func NewService(db *sql.DB, responder Responder, historyTurns int, timeout time.Duration) *Service {
	if historyTurns <= 0 || historyTurns > MaxHistoryTurns {
		historyTurns = MaxHistoryTurns
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{db: db, responder: responder, historyTurns: historyTurns, timeout: timeout}
}

// Reply is what the user sees after sending a message.
type Reply struct {
	Text     string `json:"reply"`
	Score    int    `json:"score"`
	Tone     Tone   `json:"tone"`
	Fallback bool   `json:"fallback"`
}

// Respond answers message for userID and appends both turns to the transcript.
func (s *Service) Respond(ctx context.Context, userID int64, message string, score int) Reply {
	out := Reply{Score: score, Tone: ToneFor(score)}

	history, err := s.recentTurns(ctx, userID, s.historyTurns)
	if err != nil {
		slog.Warn("load chat history failed", "user_id", userID, "err", err)
		history = nil
	}

	if s.responder != nil {
		rctx, cancel := context.WithTimeout(ctx, s.timeout)
		out.Text, err = s.responder.Reply(rctx, message, score, history)
		cancel()
		if err != nil {
			slog.Error("assistant reply failed", "user_id", userID, "err", err)
		}
	}
	if out.Text == "" {
		out.Text = FallbackReply
		out.Fallback = true
	}

	s.appendTurn(ctx, userID, models.ChatRoleUser, message)
	s.appendTurn(ctx, userID, models.ChatRoleAssistant, out.Text)
	return out
}

// Transcript replays userID's conversation, oldest first.
func (s *Service) Transcript(ctx context.Context, userID int64) ([]models.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, message, created_at FROM chat_history WHERE user_id = ? ORDER BY id ASC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return scanTurns(rows)
}

func (s *Service) recentTurns(ctx context.Context, userID int64, limit int) ([]models.ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, role, message, created_at FROM (
			SELECT id, user_id, role, message, created_at FROM chat_history
			WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) recent ORDER BY id ASC`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent chat history: %w", err)
	}
	return scanTurns(rows)
}

func (s *Service) appendTurn(ctx context.Context, userID int64, role models.ChatRole, message string) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (user_id, role, message, created_at) VALUES (?, ?, ?, ?)`,
		userID, string(role), message, models.FormatTimestamp(time.Now()),
	)
	if err != nil {
		slog.Warn("save chat turn failed", "user_id", userID, "role", role, "err", err)
	}
}

func scanTurns(rows *sql.Rows) ([]models.ChatTurn, error) {
	defer rows.Close()
	turns := make([]models.ChatTurn, 0)
	for rows.Next() {
		var (
			t             models.ChatTurn
			role, created string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Message, &created); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		t.Role = models.ChatRole(role)
		var err error
		if t.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
