package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/dimitrije/passkeep/internal/models"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a named shared in-memory database so the writer and
// reader pools see the same data. The name comes from t.Name() to keep
// tests isolated.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		url.PathEscape(t.Name()),
	)

	db, err := open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer))
	return db
}

func createTestUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	user, err := NewUserRepo(db).Register(context.Background(), email, "", "correct-horse-battery")
	require.NoError(t, err)
	return user
}
