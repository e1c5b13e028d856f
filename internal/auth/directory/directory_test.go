package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blindlog/blindlog/internal/auth/cache"
	"github.com/blindlog/blindlog/internal/auth/storage"
	"github.com/blindlog/blindlog/internal/auth/user"
)

type fakeUserStore struct {
	users        map[string]user.User
	getCalls     int
	getManyCalls int
	lastBatch    []string
}

func newFakeUserStore(users ...user.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]user.User)}
	for _, u := range users {
		store.users[u.ID] = u
	}
	return store
}

func (s *fakeUserStore) PutUser(_ context.Context, u user.User) error {
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) GetUser(_ context.Context, userID string) (user.User, error) {
	s.getCalls++
	u, ok := s.users[userID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetUsers(_ context.Context, userIDs []string) ([]user.User, error) {
	s.getManyCalls++
	s.lastBatch = append([]string(nil), userIDs...)
	var out []user.User
	for _, id := range userIDs {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func testUser(id string) user.User {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return user.User{ID: id, CreatedAt: created, UpdatedAt: created}
}

func newTestDirectory(users ...user.User) (*Directory, *fakeUserStore, *cache.Memory, *time.Time) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemory()
	store.SetClock(func() time.Time { return now })
	db := newFakeUserStore(users...)
	return New(store, db), db, store, &now
}

func TestGetPopulatesCache(t *testing.T) {
	dir, db, _, _ := newTestDirectory(testUser("u1"))
	ctx := context.Background()

	first, err := dir.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.ID != "u1" {
		t.Fatalf("user = %+v", first)
	}
	if db.getCalls != 1 {
		t.Fatalf("db reads = %d, want 1", db.getCalls)
	}

	if _, err := dir.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if db.getCalls != 1 {
		t.Fatalf("db reads after cached get = %d, want 1", db.getCalls)
	}
}

func TestGetUnknownUser(t *testing.T) {
	dir, _, _, _ := newTestDirectory()

	if _, err := dir.Get(context.Background(), "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want storage.ErrNotFound", err)
	}
}

func TestGetSlidesTTL(t *testing.T) {
	dir, db, _, now := newTestDirectory(testUser("u1"))
	ctx := context.Background()

	if _, err := dir.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Each read inside the window extends the entry, so reads nine minutes
	// apart never fall back to the database.
	for i := 0; i < 3; i++ {
		*now = now.Add(9 * time.Minute)
		if _, err := dir.Get(ctx, "u1"); err != nil {
			t.Fatalf("Get after %d slides: %v", i+1, err)
		}
	}
	if db.getCalls != 1 {
		t.Fatalf("db reads = %d, want 1", db.getCalls)
	}

	// Past the full window without a read, the entry is gone.
	*now = now.Add(11 * time.Minute)
	if _, err := dir.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get after expiry: %v", err)
	}
	if db.getCalls != 2 {
		t.Fatalf("db reads = %d, want 2", db.getCalls)
	}
}

func TestGetManyMixedHitsAndMisses(t *testing.T) {
	dir, db, _, _ := newTestDirectory(testUser("u1"), testUser("u2"), testUser("u3"))
	ctx := context.Background()

	// Prime u2 so the batch read sees one hit and two misses.
	if _, err := dir.Get(ctx, "u2"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	users, err := dir.GetMany(ctx, []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("users = %d, want 3", len(users))
	}
	for i, want := range []string{"u1", "u2", "u3"} {
		if users[i].ID != want {
			t.Fatalf("users[%d] = %q, want %q", i, users[i].ID, want)
		}
	}

	if db.getManyCalls != 1 {
		t.Fatalf("batch reads = %d, want 1", db.getManyCalls)
	}
	if len(db.lastBatch) != 2 {
		t.Fatalf("batch ids = %v, want only the misses", db.lastBatch)
	}

	// The batch read wrote every row back; a repeat touches no storage.
	if _, err := dir.GetMany(ctx, []string{"u1", "u2", "u3"}); err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if db.getManyCalls != 1 {
		t.Fatalf("batch reads after writeback = %d, want 1", db.getManyCalls)
	}
}

func TestGetManySkipsUnknown(t *testing.T) {
	dir, _, _, _ := newTestDirectory(testUser("u1"))

	users, err := dir.GetMany(context.Background(), []string{"ghost", "u1"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(users) != 1 || users[0].ID != "u1" {
		t.Fatalf("users = %+v, want only u1", users)
	}
}

func TestInvalidate(t *testing.T) {
	dir, db, _, _ := newTestDirectory(testUser("u1"))
	ctx := context.Background()

	if _, err := dir.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := dir.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := dir.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if db.getCalls != 2 {
		t.Fatalf("db reads = %d, want 2", db.getCalls)
	}
}

func TestGetReflectsWriteAfterInvalidate(t *testing.T) {
	dir, db, _, _ := newTestDirectory(testUser("u1"))
	ctx := context.Background()

	if _, err := dir.Get(ctx, "u1"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	updated := db.users["u1"]
	updated.Email = "a@example.com"
	db.users["u1"] = updated

	// Stale until invalidated.
	cached, err := dir.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if cached.Email != "" {
		t.Fatalf("cached email = %q, want stale empty value", cached.Email)
	}

	if err := dir.Invalidate(ctx, "u1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	fresh, err := dir.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fresh.Email != "a@example.com" {
		t.Fatalf("email = %q, want a@example.com", fresh.Email)
	}
}
