package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/valentinpelus/alertdesk/pkg/types"
)

var teamColumns = []string{"id", "name", "bot_user_id", "bot_token", "created_by", "created_at", "updated_at"}

func setupMockStore(t *testing.T) (*TeamStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTeamStoreWithDB(db), mock
}

func TestTeamStore_EnsureSchema(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS teams").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Errorf("EnsureSchema() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestTeamStore_Save(t *testing.T) {
	s, mock := setupMockStore(t)

	team := types.Team{ID: "T1", Name: "Acme", BotUserID: "U1", BotToken: "xoxb-1", CreatedBy: "U2"}

	t.Run("upsert", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO teams").
			WithArgs("T1", "Acme", "U1", "xoxb-1", "U2", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		if err := s.Save(context.Background(), team); err != nil {
			t.Errorf("Save() error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Mock expectations were not met: %v", err)
		}
	})

	t.Run("database error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO teams").WillReturnError(sql.ErrConnDone)

		if err := s.Save(context.Background(), team); err == nil {
			t.Error("Save() expected error")
		}
	})
}

func TestTeamStore_Get(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM teams WHERE id").
			WithArgs("T1").
			WillReturnRows(sqlmock.NewRows(teamColumns).AddRow("T1", "Acme", "U1", "xoxb-1", "U2", now, now))

		team, err := s.Get(context.Background(), "T1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if team.BotToken != "xoxb-1" || !team.HasBot() {
			t.Errorf("Get() = %+v", team)
		}
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM teams WHERE id").
			WithArgs("T404").
			WillReturnError(sql.ErrNoRows)

		_, err := s.Get(context.Background(), "T404")
		if !errors.Is(err, ErrTeamNotFound) {
			t.Errorf("Get() error = %v, want ErrTeamNotFound", err)
		}
	})
}

func TestTeamStore_All(t *testing.T) {
	s, mock := setupMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM teams ORDER BY").
		WillReturnRows(sqlmock.NewRows(teamColumns).
			AddRow("T1", "Acme", "U1", "xoxb-1", "U2", now, now).
			AddRow("T2", "Initech", "", "", "U3", now, now))

	teams, err := s.All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(teams) != 2 {
		t.Fatalf("All() returned %d teams, want 2", len(teams))
	}
	if teams[1].HasBot() {
		t.Error("team without token should not have a bot")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Mock expectations were not met: %v", err)
	}
}

func TestNewTeamStore_EmptyDSN(t *testing.T) {
	if _, err := NewTeamStore(""); err == nil {
		t.Error("expected error for empty DSN")
	}
}
