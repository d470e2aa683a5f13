package store

import (
	"testing"
	"time"

	"github.com/filamentory/filamentory/internal/database"
)

func setupMagicTokenTestDB(t *testing.T) (*MagicTokenStore, string) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := NewUserStore(db).Create("alice@example.com")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewMagicTokenStore(db), user.ID
}

func TestMagicTokenCreate(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	mt, err := ms.Create(userID, "123456-abcd1234", time.Now().UTC().Add(15*time.Minute))
	if err != nil {
		t.Fatalf("create magic token: %v", err)
	}
	if mt.ID == "" {
		t.Error("expected non-empty id")
	}
	if mt.Token != "123456-abcd1234" {
		t.Errorf("token = %q, want %q", mt.Token, "123456-abcd1234")
	}
	if mt.Used {
		t.Error("new token should not be used")
	}
	if mt.CodePrefix() != "123456" {
		t.Errorf("code prefix = %q, want %q", mt.CodePrefix(), "123456")
	}
}

func TestMagicTokenGetUnusedByToken(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	created, _ := ms.Create(userID, "123456-abcd1234", time.Now().UTC().Add(15*time.Minute))

	mt, err := ms.GetUnusedByToken("123456-abcd1234")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if mt == nil {
		t.Fatal("expected token, got nil")
	}
	if mt.ID != created.ID {
		t.Errorf("id = %q, want %q", mt.ID, created.ID)
	}
}

func TestMagicTokenGetUnusedByTokenNotFound(t *testing.T) {
	ms, _ := setupMagicTokenTestDB(t)

	mt, err := ms.GetUnusedByToken("000000-deadbeef")
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if mt != nil {
		t.Error("expected nil for unknown token")
	}
}

func TestMagicTokenGetUnusedByUserAndCode(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	ms.Create(userID, "111111-aaaaaaaa", time.Now().UTC().Add(15*time.Minute))
	created, _ := ms.Create(userID, "222222-bbbbbbbb", time.Now().UTC().Add(15*time.Minute))

	mt, err := ms.GetUnusedByUserAndCode(userID, "222222")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if mt == nil {
		t.Fatal("expected token, got nil")
	}
	if mt.ID != created.ID {
		t.Errorf("id = %q, want %q", mt.ID, created.ID)
	}
}

func TestMagicTokenGetUnusedByUserAndCodeWrongCode(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	ms.Create(userID, "111111-aaaaaaaa", time.Now().UTC().Add(15*time.Minute))

	mt, err := ms.GetUnusedByUserAndCode(userID, "999999")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if mt != nil {
		t.Error("expected nil for unmatched code")
	}
}

func TestMagicTokenMarkUsedOnce(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	created, _ := ms.Create(userID, "123456-abcd1234", time.Now().UTC().Add(15*time.Minute))

	n, err := ms.MarkUsed(created.ID)
	if err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if n != 1 {
		t.Errorf("rows affected = %d, want 1", n)
	}

	// Second consumption must lose the race
	n, err = ms.MarkUsed(created.ID)
	if err != nil {
		t.Fatalf("mark used again: %v", err)
	}
	if n != 0 {
		t.Errorf("rows affected = %d, want 0", n)
	}

	mt, _ := ms.GetUnusedByToken(created.Token)
	if mt != nil {
		t.Error("expected nil for used token")
	}
}

func TestMagicTokenInvalidateAllForUser(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	ms.Create(userID, "111111-aaaaaaaa", time.Now().UTC().Add(15*time.Minute))
	ms.Create(userID, "222222-bbbbbbbb", time.Now().UTC().Add(15*time.Minute))

	if err := ms.InvalidateAllForUser(userID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	for _, tok := range []string{"111111-aaaaaaaa", "222222-bbbbbbbb"} {
		mt, _ := ms.GetUnusedByToken(tok)
		if mt != nil {
			t.Errorf("token %q should be invalidated", tok)
		}
	}
}

func TestMagicTokenDeleteExpired(t *testing.T) {
	ms, userID := setupMagicTokenTestDB(t)

	ms.Create(userID, "111111-aaaaaaaa", time.Now().UTC().Add(-time.Hour))
	ms.Create(userID, "222222-bbbbbbbb", time.Now().UTC().Add(15*time.Minute))

	count, err := ms.DeleteExpired()
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if count != 1 {
		t.Errorf("deleted = %d, want 1", count)
	}

	mt, _ := ms.GetUnusedByToken("222222-bbbbbbbb")
	if mt == nil {
		t.Error("unexpired token should survive cleanup")
	}
}
