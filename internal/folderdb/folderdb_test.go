package folderdb

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/starford/arbor/internal/apperr"
	"github.com/starford/arbor/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "arbor-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenSeedsRoot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	root, err := db.Get(ctx, RootID)
	if err != nil {
		t.Fatalf("Get root: %v", err)
	}
	if root.Name != RootName || root.ParentID != nil {
		t.Errorf("root = %+v", root)
	}
}

func TestReopenKeepsSingleRoot(t *testing.T) {
	f, err := os.CreateTemp("", "arbor-reopen-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	for i := 0; i < 2; i++ {
		db, err := Open(f.Name())
		if err != nil {
			t.Fatalf("Open #%d: %v", i, err)
		}
		n, err := db.Count(context.Background())
		db.Close()
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 1 {
			t.Fatalf("open #%d: count = %d, want 1", i, n)
		}
	}
}

func TestInsertAndListOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a, err := db.Insert(ctx, "A", models.Ptr(RootID))
	if err != nil {
		t.Fatalf("Insert A: %v", err)
	}
	b, err := db.Insert(ctx, "B", models.Ptr(a.ID))
	if err != nil {
		t.Fatalf("Insert B: %v", err)
	}
	top, err := db.Insert(ctx, "Top", nil)
	if err != nil {
		t.Fatalf("Insert Top: %v", err)
	}
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("ids not unique: %q %q", a.ID, b.ID)
	}

	list, err := db.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := []string{}
	for _, r := range list {
		got = append(got, r.ID)
	}
	want := []string{RootID, a.ID, b.ID, top.ID}
	if len(got) != len(want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ids[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if list[2].ParentID == nil || *list[2].ParentID != a.ID {
		t.Errorf("B parent = %v", list[2].ParentID)
	}
	if list[3].ParentID != nil {
		t.Errorf("Top parent = %v, want nil", *list[3].ParentID)
	}
}

func TestInsertUnknownParent(t *testing.T) {
	db := testDB(t)
	_, err := db.Insert(context.Background(), "x", models.Ptr("missing"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a, _ := db.Insert(ctx, "A", models.Ptr(RootID))
	b, _ := db.Insert(ctx, "B", models.Ptr(a.ID))
	c, _ := db.Insert(ctx, "C", models.Ptr(b.ID))
	keep, _ := db.Insert(ctx, "Keep", models.Ptr(RootID))

	removed, err := db.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(removed) != 3 || removed[0] != a.ID {
		t.Errorf("removed = %v", removed)
	}

	for _, id := range []string{a.ID, b.ID, c.ID} {
		if _, err := db.Get(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Get(%s) err = %v, want ErrNotFound", id, err)
		}
	}
	if _, err := db.Get(ctx, keep.ID); err != nil {
		t.Errorf("sibling removed: %v", err)
	}
}

func TestDeleteUnknown(t *testing.T) {
	db := testDB(t)
	if _, err := db.Delete(context.Background(), "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
