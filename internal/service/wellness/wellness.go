package wellness

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stressguard/internal/alerting"
	"stressguard/internal/analytics"
	"stressguard/internal/models"
	"stressguard/internal/scoring"
)

var (
	ErrEmptyReflection = errors.New("please enter your thoughts")
	ErrAlertNotFound   = errors.New("alert not found")
)

// Auditor records account-level actions. account.Service satisfies it.
type Auditor interface {
	LogAction(ctx context.Context, username, action string)
}

// Service runs the reflection pipeline and serves the role dashboards.
type Service struct {
	db               *sql.DB
	scorer           scoring.Scorer
	policy           alerting.Policy
	burnoutThreshold float64
	auditor          Auditor
	now              func() time.Time
}

// NewService wires the scorer and alert policy to the store.
func NewService(db *sql.DB, scorer scoring.Scorer, policy alerting.Policy, burnoutThreshold float64, auditor Auditor) *Service {
	return &Service{
		db:               db,
		scorer:           scorer,
		policy:           policy,
		burnoutThreshold: burnoutThreshold,
		auditor:          auditor,
		now:              time.Now,
	}
}

// Submission is the outcome of a single reflection.
type Submission struct {
	Log            models.StressLog        `json:"log"`
	Classification alerting.Classification `json:"classification"`
	Alert          *models.Alert           `json:"alert,omitempty"`
}

// SubmitReflection scores text, stores the log and raises an alert when the
// policy asks for one. The alert is only written after the log insert
// succeeded, so an alert never exists without its log.
func (s *Service) SubmitReflection(ctx context.Context, userID int64, username, text string) (*Submission, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReflection
	}
	score, err := s.scorer.Score(ctx, text)
	if err != nil {
		if errors.Is(err, scoring.ErrEmptyText) {
			return nil, ErrEmptyReflection
		}
		return nil, fmt.Errorf("score reflection: %w", err)
	}
	class := s.policy.Classify(score)
	now := s.now()
	stamp := models.FormatTimestamp(now)
	createdAt, _ := models.ParseTimestamp(stamp)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO stress_logs (user_id, user_text, stress_score, created_at) VALUES (?, ?, ?, ?)`,
		userID, text, score, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert stress log: %w", err)
	}
	logID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("stress log id: %w", err)
	}
	sub := &Submission{
		Log: models.StressLog{
			ID: logID, UserID: userID, Username: username, Text: text, Score: score, CreatedAt: createdAt,
		},
		Classification: class,
	}
	if !class.ShouldAlert {
		return sub, nil
	}

	res, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (user_id, stress_score, severity, escalation_level, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, score, string(class.Severity), class.EscalationLevel, stamp,
	)
	if err != nil {
		// the stress log is already committed; report it without the alert
		slog.Error("insert alert failed", "user_id", userID, "score", score, "severity", class.Severity, "err", err)
		return sub, nil
	}
	alertID, err := res.LastInsertId()
	if err != nil {
		slog.Error("read alert id failed", "user_id", userID, "err", err)
		return sub, nil
	}
	sub.Alert = &models.Alert{
		ID:              alertID,
		UserID:          userID,
		Username:        username,
		Score:           score,
		Severity:        class.Severity,
		EscalationLevel: class.EscalationLevel,
		CreatedAt:       createdAt,
	}
	slog.Info("stress alert raised", "user_id", userID, "score", score, "severity", class.Severity)
	if s.auditor != nil {
		s.auditor.LogAction(ctx, username, fmt.Sprintf("Stress Alert Raised (%s)", class.Severity))
	}
	return sub, nil
}

// UserLogs returns userID's logs, oldest first.
func (s *Service) UserLogs(ctx context.Context, userID int64) ([]models.StressLog, error) {
	return s.queryLogs(ctx, `WHERE s.user_id = ?`, userID)
}

// TeamLogs returns the logs of every employee on managerID's team.
func (s *Service) TeamLogs(ctx context.Context, managerID int64) ([]models.StressLog, error) {
	return s.queryLogs(ctx,
		`JOIN manager_team mt ON mt.employee_id = s.user_id WHERE mt.manager_id = ?`, managerID)
}

// AllLogs returns every stored log.
func (s *Service) AllLogs(ctx context.Context) ([]models.StressLog, error) {
	return s.queryLogs(ctx, ``)
}

// LatestScore returns the most recent score for userID. ok is false when the
// user has not submitted anything yet.
func (s *Service) LatestScore(ctx context.Context, userID int64) (score int, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT stress_score FROM stress_logs WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
	).Scan(&score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("latest score: %w", err)
	}
	return score, true, nil
}

// EmployeeDashboard is the personal view.
type EmployeeDashboard struct {
	Summary analytics.Summary  `json:"summary"`
	Logs    []models.StressLog `json:"logs"`
}

func (s *Service) EmployeeDashboard(ctx context.Context, userID int64) (*EmployeeDashboard, error) {
	logs, err := s.UserLogs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &EmployeeDashboard{Summary: analytics.Summarize(logs, s.now()), Logs: logs}, nil
}

// TeamDashboard is the manager view, scoped to assigned employees only.
type TeamDashboard struct {
	Summary  analytics.Summary  `json:"summary"`
	Logs     []models.StressLog `json:"logs"`
	Alerts   []models.Alert     `json:"alerts"`
	Elevated int                `json:"elevated"`
}

func (s *Service) TeamDashboard(ctx context.Context, managerID int64) (*TeamDashboard, error) {
	logs, err := s.TeamLogs(ctx, managerID)
	if err != nil {
		return nil, err
	}
	alerts, err := s.queryAlerts(ctx,
		`JOIN manager_team mt ON mt.employee_id = a.user_id WHERE mt.manager_id = ? AND a.resolved = 0`, managerID)
	if err != nil {
		return nil, err
	}
	return &TeamDashboard{
		Summary:  analytics.Summarize(logs, s.now()),
		Logs:     logs,
		Alerts:   alerts,
		Elevated: analytics.CountAtOrAbove(logs, s.policy.Threshold),
	}, nil
}

// OrgDashboard is the admin view over every user.
type OrgDashboard struct {
	Summary analytics.Summary     `json:"summary"`
	Logs    []models.StressLog    `json:"logs"`
	Burnout []analytics.RiskEntry `json:"burnout"`
	Alerts  []models.Alert        `json:"alerts"`
}

func (s *Service) OrgDashboard(ctx context.Context) (*OrgDashboard, error) {
	logs, err := s.AllLogs(ctx)
	if err != nil {
		return nil, err
	}
	alerts, err := s.ListAlerts(ctx, true)
	if err != nil {
		return nil, err
	}
	burnout := analytics.BurnoutRisk(logs, s.burnoutThreshold)
	if burnout == nil {
		burnout = make([]analytics.RiskEntry, 0)
	}
	return &OrgDashboard{
		Summary: analytics.Summarize(logs, s.now()),
		Logs:    logs,
		Burnout: burnout,
		Alerts:  alerts,
	}, nil
}

// ListAlerts returns alerts newest first, optionally only the unresolved ones.
func (s *Service) ListAlerts(ctx context.Context, unresolvedOnly bool) ([]models.Alert, error) {
	if unresolvedOnly {
		return s.queryAlerts(ctx, `WHERE a.resolved = 0`)
	}
	return s.queryAlerts(ctx, ``)
}

// ResolveAlert marks an alert handled. Resolving twice is a no-op.
func (s *Service) ResolveAlert(ctx context.Context, alertID int64, resolvedBy string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET resolved = 1 WHERE id = ?`, alertID)
	if err != nil {
		return fmt.Errorf("resolve alert: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM alerts WHERE id = ?`, alertID).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrAlertNotFound
			}
			return fmt.Errorf("lookup alert: %w", err)
		}
	}
	if s.auditor != nil {
		s.auditor.LogAction(ctx, resolvedBy, fmt.Sprintf("Resolved Alert %d", alertID))
	}
	return nil
}

func (s *Service) queryLogs(ctx context.Context, clause string, args ...any) ([]models.StressLog, error) {
	query := `SELECT s.id, s.user_id, u.username, s.user_text, s.stress_score, s.created_at
		FROM stress_logs s JOIN users u ON u.id = s.user_id ` + clause +
		` ORDER BY s.created_at ASC, s.id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stress logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.StressLog, 0)
	for rows.Next() {
		var (
			l       models.StressLog
			created string
		)
		if err := rows.Scan(&l.ID, &l.UserID, &l.Username, &l.Text, &l.Score, &created); err != nil {
			return nil, fmt.Errorf("scan stress log: %w", err)
		}
		if l.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) queryAlerts(ctx context.Context, clause string, args ...any) ([]models.Alert, error) {
	query := `SELECT a.id, a.user_id, u.username, a.stress_score, a.severity, a.escalation_level, a.resolved, a.created_at
		FROM alerts a JOIN users u ON u.id = a.user_id ` + clause +
		` ORDER BY a.created_at DESC, a.id DESC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		var (
			a                 models.Alert
			severity, created string
			resolved          int
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Username, &a.Score, &severity, &a.EscalationLevel, &resolved, &created); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = models.Severity(severity)
		a.Resolved = resolved != 0
		if a.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
