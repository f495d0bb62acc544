// Package store persists Slack team installations.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	log "github.com/sirupsen/logrus"

	"github.com/valentinpelus/alertdesk/pkg/types"
)

// ErrTeamNotFound is returned when no installation exists for a team id
var ErrTeamNotFound = errors.New("team not found")

const schema = `
	CREATE TABLE IF NOT EXISTS teams (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL DEFAULT '',
		bot_user_id TEXT NOT NULL DEFAULT '',
		bot_token   TEXT NOT NULL DEFAULT '',
		created_by  TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// TeamStore reads and writes team installations
type TeamStore struct {
	db *sql.DB
}

// NewTeamStore connects to PostgreSQL at dsn
func NewTeamStore(dsn string) (*TeamStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &TeamStore{db: db}, nil
}

// NewTeamStoreWithDB wraps an existing connection
func NewTeamStoreWithDB(db *sql.DB) *TeamStore {
	return &TeamStore{db: db}
}

// Close closes the database connection
func (s *TeamStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// EnsureSchema creates the teams table if needed
func (s *TeamStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create teams table: %w", err)
	}
	return nil
}

// Save inserts or updates a team installation
func (s *TeamStore) Save(ctx context.Context, team types.Team) error {
	query := `
		INSERT INTO teams (id, name, bot_user_id, bot_token, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			bot_user_id = EXCLUDED.bot_user_id,
			bot_token = EXCLUDED.bot_token,
			updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		team.ID,
		team.Name,
		team.BotUserID,
		team.BotToken,
		team.CreatedBy,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save team %s: %w", team.ID, err)
	}

	log.WithField("team_id", team.ID).Info("Saved team installation")
	return nil
}

// Get returns one team
func (s *TeamStore) Get(ctx context.Context, id string) (types.Team, error) {
	query := `
		SELECT id, name, bot_user_id, bot_token, created_by, created_at, updated_at
		FROM teams
		WHERE id = $1
	`

	var team types.Team
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&team.ID,
		&team.Name,
		&team.BotUserID,
		&team.BotToken,
		&team.CreatedBy,
		&team.CreatedAt,
		&team.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Team{}, fmt.Errorf("%w: %s", ErrTeamNotFound, id)
	}
	if err != nil {
		return types.Team{}, fmt.Errorf("failed to get team: %w", err)
	}

	return team, nil
}

// All returns every stored team
func (s *TeamStore) All(ctx context.Context) ([]types.Team, error) {
	query := `
		SELECT id, name, bot_user_id, bot_token, created_by, created_at, updated_at
		FROM teams
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams: %w", err)
	}
	defer rows.Close()

	var teams []types.Team
	for rows.Next() {
		var team types.Team
		if err := rows.Scan(
			&team.ID,
			&team.Name,
			&team.BotUserID,
			&team.BotToken,
			&team.CreatedBy,
			&team.CreatedAt,
			&team.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, team)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}

	return teams, nil
}
