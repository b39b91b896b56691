package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hitoshi/focusboard/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginRepoFixture struct {
	repo   LoginSessionRepository
	insert func(t *testing.T, id, userID string, expiresAt time.Time)
}

func loginRepoFixtures(c clock.Clock) map[string]func(t *testing.T) loginRepoFixture {
	return map[string]func(t *testing.T) loginRepoFixture{
		"sqlite": func(t *testing.T) loginRepoFixture {
			db := newSQLiteTestDB(t)
			return loginRepoFixture{
				repo: NewSQLiteLoginSessionRepo(db, c),
				insert: func(t *testing.T, id, userID string, expiresAt time.Time) {
					_, err := db.Exec(
						`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
						id, userID, formatSQLiteTime(expiresAt), formatSQLiteTime(repoTestStart),
					)
					require.NoError(t, err)
				},
			}
		},
		"postgres": func(t *testing.T) loginRepoFixture {
			db := newPostgresTestDB(t)
			return loginRepoFixture{
				repo:   NewPostgresLoginSessionRepo(db, c),
				insert: postgresSessionInserter(db),
			}
		},
	}
}

func postgresSessionInserter(db *sql.DB) func(t *testing.T, id, userID string, expiresAt time.Time) {
	return func(t *testing.T, id, userID string, expiresAt time.Time) {
		_, err := db.Exec(
			`INSERT INTO sessions (id, user_id, expires_at, created_at) VALUES ($1, $2, $3, $4)`,
			id, userID, expiresAt, repoTestStart,
		)
		require.NoError(t, err)
	}
}

func TestLoginSessionRepo_FindByID(t *testing.T) {
	c := clock.NewFake(repoTestStart)
	for name, newFixture := range loginRepoFixtures(c) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.insert(t, "live", "user-1", repoTestStart.Add(time.Hour))
			f.insert(t, "expired", "user-2", repoTestStart.Add(-time.Hour))

			s, err := f.repo.FindByID(ctx, "live")
			require.NoError(t, err)
			require.NotNil(t, s)
			assert.Equal(t, "user-1", s.UserID)
			assert.True(t, s.ExpiresAt.Equal(repoTestStart.Add(time.Hour)))

			expired, err := f.repo.FindByID(ctx, "expired")
			require.NoError(t, err)
			assert.Nil(t, expired)

			missing, err := f.repo.FindByID(ctx, "missing")
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestLoginSessionRepo_DeleteExpired(t *testing.T) {
	c := clock.NewFake(repoTestStart)
	for name, newFixture := range loginRepoFixtures(c) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.insert(t, "live", "user-1", repoTestStart.Add(time.Hour))
			f.insert(t, "expired-1", "user-2", repoTestStart.Add(-time.Hour))
			f.insert(t, "expired-2", "user-3", repoTestStart.Add(-2*time.Hour))

			deleted, err := f.repo.DeleteExpired(ctx, repoTestStart)
			require.NoError(t, err)
			assert.Equal(t, int64(2), deleted)

			s, err := f.repo.FindByID(ctx, "live")
			require.NoError(t, err)
			assert.NotNil(t, s)

			again, err := f.repo.DeleteExpired(ctx, repoTestStart)
			require.NoError(t, err)
			assert.Equal(t, int64(0), again)
		})
	}
}
