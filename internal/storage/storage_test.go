package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"life-weeks-bot/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot.db")
	db, err := New(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = db.Close()

	db, err = New(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = db.Close()
}

func TestChatRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetChat(ctx, 42)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no chat, got %+v", got)
	}

	c := &models.ChatState{ChatID: 42}
	c.Onboard(30, models.TimeOfDay{Hour: 7, Minute: 30}, models.TimeOfDay{Hour: 22}, models.DateOf(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	c.DayGoal = "Read 10 pages"
	c.Streak = 3
	if err := db.SaveChat(ctx, c); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	got, err = db.GetChat(ctx, 42)
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got == nil {
		t.Fatal("expected chat")
	}
	if got.StartDate.String() != "2024-01-01" {
		t.Fatalf("start date = %s", got.StartDate)
	}
	if got.MorningAt != c.MorningAt || got.EveningAt != c.EveningAt {
		t.Fatalf("times = %s/%s", got.MorningAt, got.EveningAt)
	}
	if got.StartWeek != 1560 || got.StartDay != 10920 || got.Streak != 3 || got.DayGoal != "Read 10 pages" {
		t.Fatalf("unexpected chat: %+v", got)
	}

	got.Streak = 0
	got.DayGoal = ""
	if err := db.SaveChat(ctx, got); err != nil {
		t.Fatalf("SaveChat update: %v", err)
	}
	again, _ := db.GetChat(ctx, 42)
	if again.Streak != 0 || again.DayGoal != "" {
		t.Fatalf("update not persisted: %+v", again)
	}
}

func TestListChats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []int64{2, 1} {
		c := &models.ChatState{ChatID: id}
		c.Onboard(20, models.TimeOfDay{Hour: 8}, models.TimeOfDay{Hour: 21}, models.DateOf(time.Now()))
		if err := db.SaveChat(ctx, c); err != nil {
			t.Fatalf("SaveChat: %v", err)
		}
	}

	chats, err := db.ListChats(ctx)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 2 || chats[0].ChatID != 1 || chats[1].ChatID != 2 {
		t.Fatalf("unexpected chats: %+v", chats)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s, err := db.GetSession(ctx, 7)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.Stage != models.StageIdle || s.ChatID != 7 {
		t.Fatalf("unexpected default session: %+v", s)
	}

	age := 30
	morning := models.TimeOfDay{Hour: 7, Minute: 30}
	s = models.Session{ChatID: 7, Stage: models.StageAwaitingEveningTime, DraftAge: &age, DraftMorning: &morning}
	if err := db.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := db.GetSession(ctx, 7)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Stage != models.StageAwaitingEveningTime {
		t.Fatalf("stage = %s", got.Stage)
	}
	if got.DraftAge == nil || *got.DraftAge != 30 {
		t.Fatalf("draft age = %v", got.DraftAge)
	}
	if got.DraftMorning == nil || *got.DraftMorning != morning {
		t.Fatalf("draft morning = %v", got.DraftMorning)
	}

	if err := db.SaveSession(ctx, got.Idle()); err != nil {
		t.Fatalf("SaveSession idle: %v", err)
	}
	got, _ = db.GetSession(ctx, 7)
	if got.Stage != models.StageIdle || got.DraftAge != nil || got.DraftMorning != nil {
		t.Fatalf("unexpected idle session: %+v", got)
	}
}

func TestClaimPromptOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	p := &models.Prompt{Token: "tok-1", ChatID: 1, Kind: models.PromptEvening, MessageID: 10}
	if err := db.InsertPrompt(ctx, p); err != nil {
		t.Fatalf("InsertPrompt: %v", err)
	}

	if _, err := db.ClaimPrompt(ctx, 1, "tok-1", models.PromptMorning, time.Now()); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("claim with wrong kind err = %v", err)
	}
	if _, err := db.ClaimPrompt(ctx, 2, "tok-1", models.PromptEvening, time.Now()); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("claim from another chat err = %v", err)
	}

	got, err := db.ClaimPrompt(ctx, 1, "tok-1", models.PromptEvening, time.Now())
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if got.MessageID != 10 || got.AnsweredAt == nil {
		t.Fatalf("unexpected prompt: %+v", got)
	}

	if _, err := db.ClaimPrompt(ctx, 1, "tok-1", models.PromptEvening, time.Now()); !errors.Is(err, ErrPromptAnswered) {
		t.Fatalf("second claim err = %v", err)
	}
	if _, err := db.ClaimPrompt(ctx, 1, "missing", models.PromptEvening, time.Now()); !errors.Is(err, ErrPromptNotFound) {
		t.Fatalf("unknown token err = %v", err)
	}
}

func TestExpirePrompts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i, tok := range []string{"a", "b"} {
		if err := db.InsertPrompt(ctx, &models.Prompt{Token: tok, ChatID: 1, Kind: models.PromptMorning, MessageID: i + 1}); err != nil {
			t.Fatalf("InsertPrompt: %v", err)
		}
	}
	if err := db.InsertPrompt(ctx, &models.Prompt{Token: "c", ChatID: 1, Kind: models.PromptEvening, MessageID: 3}); err != nil {
		t.Fatalf("InsertPrompt: %v", err)
	}
	if _, err := db.ClaimPrompt(ctx, 1, "a", models.PromptMorning, time.Now()); err != nil {
		t.Fatalf("ClaimPrompt: %v", err)
	}

	expired, err := db.ExpirePrompts(ctx, 1, models.PromptMorning, time.Now())
	if err != nil {
		t.Fatalf("ExpirePrompts: %v", err)
	}
	if len(expired) != 1 || expired[0].Token != "b" {
		t.Fatalf("unexpected expired prompts: %+v", expired)
	}
	if _, err := db.ClaimPrompt(ctx, 1, "b", models.PromptMorning, time.Now()); !errors.Is(err, ErrPromptAnswered) {
		t.Fatalf("expired prompt claim err = %v", err)
	}
	if _, err := db.ClaimPrompt(ctx, 1, "c", models.PromptEvening, time.Now()); err != nil {
		t.Fatalf("evening prompt should stay open: %v", err)
	}
}
