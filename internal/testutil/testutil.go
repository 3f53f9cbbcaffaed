// Package testutil provides shared test helpers for setting up folder databases and servers.
package testutil

import (
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/arbor/internal/api"
	"github.com/starford/arbor/internal/folderdb"
	"github.com/starford/arbor/internal/folderservice"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *folderdb.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "arbor-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := folderdb.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestServer starts the full folder API on an httptest server backed by a
// temporary database. The returned URL is the server root; the folder
// resource lives under /api/folders/.
func TestServer(t *testing.T) (*httptest.Server, *folderdb.DB) {
	t.Helper()
	db := TestDB(t)
	svc := folderservice.NewService(db, nil)
	r := chi.NewRouter()
	r.Mount("/api", api.NewRouter(svc, false, "", nil))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, db
}
