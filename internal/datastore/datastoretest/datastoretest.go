// Package datastoretest opens isolated in-memory databases for tests.
package datastoretest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore"
)

// Open returns a migrated in-memory SQLite database unique to t. Each call
// gets its own shared-cache name so parallel tests never see each other's
// rows.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	path := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := datastore.Open(conf.DatabaseSettings{Type: conf.DatabaseSQLite, Path: path})
	require.NoError(t, err, "failed to open in-memory database")
	t.Cleanup(func() { _ = datastore.Close(db) })
	return db
}
