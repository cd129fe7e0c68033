package chat_test

import (
	"context"
	"errors"
	"testing"

	model "github.com/zhouzirui/edge-terminal/backend/internal/model/chat"
	"github.com/zhouzirui/edge-terminal/backend/internal/service/access"
	chat "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
)

func newUnlockedSession(t *testing.T, svc *chat.Service) model.Session {
	t.Helper()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "v1", true)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	if err := svc.Unlock(ctx, session.ID, "12345"); err != nil {
		t.Fatalf("Unlock err: %v", err)
	}
	return session
}

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "v2", false)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.ProfileID != "v2" {
		t.Fatalf("unexpected profile ID: got %s", got.ProfileID)
	}
	if got.Unlocked {
		t.Fatal("new sessions must start locked")
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))

	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestUnlockWrongKeysStayLocked(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "v1", true)

	for _, key := range []string{"", "1234", "12345 ", "abcde", "54321"} {
		if err := svc.Unlock(ctx, session.ID, key); !errors.Is(err, chat.ErrInvalidKey) {
			t.Fatalf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
		got, _ := svc.GetSession(ctx, session.ID)
		if got.Unlocked {
			t.Fatalf("key %q unlocked the session", key)
		}
	}
}

func TestUnlockIsOneWay(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session := newUnlockedSession(t, svc)

	if err := svc.Unlock(ctx, session.ID, "wrong"); !errors.Is(err, chat.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if err := svc.Clear(ctx, session.ID); err != nil {
		t.Fatalf("Clear err: %v", err)
	}

	got, _ := svc.GetSession(ctx, session.ID)
	if !got.Unlocked {
		t.Fatal("session must stay unlocked for its lifetime")
	}
}

func TestBeginTurnRequiresUnlock(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "v1", true)

	if _, _, err := svc.BeginTurn(ctx, session.ID); !errors.Is(err, chat.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestBeginTurnIsExclusive(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session := newUnlockedSession(t, svc)

	_, release, err := svc.BeginTurn(ctx, session.ID)
	if err != nil {
		t.Fatalf("BeginTurn err: %v", err)
	}
	if _, _, err := svc.BeginTurn(ctx, session.ID); !errors.Is(err, chat.ErrTurnInProgress) {
		t.Fatalf("expected ErrTurnInProgress, got %v", err)
	}

	release()
	release()

	_, release2, err := svc.BeginTurn(ctx, session.ID)
	if err != nil {
		t.Fatalf("BeginTurn after release err: %v", err)
	}
	release2()
}

func TestClearEmptiesAndInvalidatesEpoch(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session := newUnlockedSession(t, svc)

	epoch, release, err := svc.BeginTurn(ctx, session.ID)
	if err != nil {
		t.Fatalf("BeginTurn err: %v", err)
	}
	defer release()

	if err := svc.AppendTurn(ctx, session.ID, epoch, model.Turn{Role: model.RoleUser, Text: "hi"}); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}
	if err := svc.Clear(ctx, session.ID); err != nil {
		t.Fatalf("Clear err: %v", err)
	}

	turns, _ := svc.Transcript(ctx, session.ID)
	if len(turns) != 0 {
		t.Fatalf("expected empty transcript, got %d turns", len(turns))
	}

	err = svc.AppendTurn(ctx, session.ID, epoch, model.Turn{Role: model.RoleAssistant, Text: "late"})
	if !errors.Is(err, chat.ErrSessionReset) {
		t.Fatalf("expected ErrSessionReset, got %v", err)
	}
}

func TestClearOnEmptySession(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "v1", true)

	if err := svc.Clear(ctx, session.ID); err != nil {
		t.Fatalf("Clear err: %v", err)
	}
}

func TestAppendTurnRejectsUnknownRole(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session := newUnlockedSession(t, svc)

	err := svc.AppendTurn(ctx, session.ID, 0, model.Turn{Role: "system", Text: "x"})
	if !errors.Is(err, chat.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestTranscriptIsACopy(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session := newUnlockedSession(t, svc)

	_ = svc.AppendTurn(ctx, session.ID, 0, model.Turn{Role: model.RoleUser, Text: "one"})
	turns, _ := svc.Transcript(ctx, session.ID)
	turns[0].Text = "mutated"

	again, _ := svc.Transcript(ctx, session.ID)
	if again[0].Text != "one" {
		t.Fatalf("transcript leaked internal state: %q", again[0].Text)
	}
}

func TestDeleteSession(t *testing.T) {
	svc := chat.NewService(access.NewGate("12345"))
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, "v1", true)

	if err := svc.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession err: %v", err)
	}
	if _, err := svc.GetSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.DeleteSession(ctx, session.ID); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}
