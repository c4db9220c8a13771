package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stressguard/internal/config"
	"stressguard/internal/models"
	"stressguard/internal/storage"
)

var (
	ErrAlreadyAssigned       = errors.New("employee is already on this manager's team")
	ErrClaimedByOtherManager = errors.New("employee is already assigned to another manager")
	ErrRoleMismatch          = errors.New("assignment requires a manager and an employee")
	ErrUserNotFound          = errors.New("user not found")
)

// Auditor records account-level actions. account.Service satisfies it.
type Auditor interface {
	LogAction(ctx context.Context, username, action string)
}

// Service maintains the manager to employee visibility graph.
type Service struct {
	db      *sql.DB
	mode    string
	auditor Auditor
}

// NewService builds a team service. An unknown mode falls back to single_manager.
func NewService(db *sql.DB, mode string, auditor Auditor) *Service {
	switch mode {
	case config.AssignmentPair, config.AssignmentSingleManager:
	default:
		mode = config.AssignmentSingleManager
	}
	return &Service{db: db, mode: mode, auditor: auditor}
}

// Mode reports the active assignment mode.
func (s *Service) Mode() string {
	return s.mode
}

// Assign adds employeeID to managerID's team. A duplicate pair never creates
// a second edge.
func (s *Service) Assign(ctx context.Context, managerID, employeeID int64) (*models.TeamAssignment, error) {
	manager, err := s.lookup(ctx, managerID)
	if err != nil {
		return nil, err
	}
	employee, err := s.lookup(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if manager.Role != models.RoleManager || employee.Role != models.RoleEmployee {
		return nil, ErrRoleMismatch
	}

	onTeam, err := s.IsOnTeam(ctx, managerID, employeeID)
	if err != nil {
		return nil, err
	}
	if onTeam {
		return nil, ErrAlreadyAssigned
	}
	id, err := s.insertEdge(ctx, managerID, employeeID)
	if err != nil {
		return nil, err
	}
	if s.auditor != nil {
		s.auditor.LogAction(ctx, manager.Username, fmt.Sprintf("Assigned Employee %s", employee.Username))
	}
	return &models.TeamAssignment{ID: id, ManagerID: managerID, EmployeeID: employeeID}, nil
}

// insertEdge writes the pair edge. In single_manager mode the ownership check
// and the insert run as one statement so two managers cannot both claim an
// employee.
func (s *Service) insertEdge(ctx context.Context, managerID, employeeID int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if s.mode == config.AssignmentSingleManager {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO manager_team (manager_id, employee_id)
			 SELECT ?, ? FROM users WHERE id = ?
			 AND NOT EXISTS (SELECT 1 FROM manager_team WHERE employee_id = ?)`,
			managerID, employeeID, employeeID, employeeID,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO manager_team (manager_id, employee_id) VALUES (?, ?)`, managerID, employeeID,
		)
	}
	if err != nil {
		// lost a race with a concurrent identical request
		if storage.IsUniqueViolation(err) {
			return 0, ErrAlreadyAssigned
		}
		return 0, fmt.Errorf("assign employee: %w", err)
	}
	if s.mode == config.AssignmentSingleManager {
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("assign employee: %w", err)
		}
		if n == 0 {
			return 0, ErrClaimedByOtherManager
		}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("assignment id: %w", err)
	}
	return id, nil
}

// IsOnTeam reports whether the pair edge exists.
func (s *Service) IsOnTeam(ctx context.Context, managerID, employeeID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM manager_team WHERE manager_id = ? AND employee_id = ?`, managerID, employeeID,
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("lookup assignment: %w", err)
	}
	return true, nil
}

// TeamOf lists the employees assigned to managerID.
func (s *Service) TeamOf(ctx context.Context, managerID int64) ([]models.User, error) {
	return s.queryUsers(ctx,
		`SELECT u.id, u.username, u.role, u.created_at
		 FROM users u JOIN manager_team mt ON mt.employee_id = u.id
		 WHERE mt.manager_id = ? ORDER BY u.username ASC`, managerID)
}

// UnassignedEmployees lists employees that no manager has claimed.
func (s *Service) UnassignedEmployees(ctx context.Context) ([]models.User, error) {
	return s.queryUsers(ctx,
		`SELECT u.id, u.username, u.role, u.created_at FROM users u
		 WHERE u.role = 'employee'
		   AND NOT EXISTS (SELECT 1 FROM manager_team mt WHERE mt.employee_id = u.id)
		 ORDER BY u.username ASC`)
}

// AvailableFor lists the employees managerID may still assign. In
// single_manager mode that is the unassigned pool; in pair mode it is every
// employee not already on this manager's team.
func (s *Service) AvailableFor(ctx context.Context, managerID int64) ([]models.User, error) {
	if s.mode == config.AssignmentSingleManager {
		return s.UnassignedEmployees(ctx)
	}
	return s.queryUsers(ctx,
		`SELECT u.id, u.username, u.role, u.created_at FROM users u
		 WHERE u.role = 'employee'
		   AND NOT EXISTS (SELECT 1 FROM manager_team mt WHERE mt.employee_id = u.id AND mt.manager_id = ?)
		 ORDER BY u.username ASC`, managerID)
}

func (s *Service) lookup(ctx context.Context, id int64) (*models.User, error) {
	var (
		u    models.User
		role string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}

func (s *Service) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list team users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		var (
			u             models.User
			role, created string
		)
		if err := rows.Scan(&u.ID, &u.Username, &role, &created); err != nil {
			return nil, fmt.Errorf("scan team user: %w", err)
		}
		u.Role = models.Role(role)
		if u.CreatedAt, err = models.ParseTimestamp(created); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
