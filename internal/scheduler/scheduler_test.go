package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"life-weeks-bot/internal/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) SendMorning(_ context.Context, chatID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, "morning")
	return nil
}

func (n *recordingNotifier) SendEvening(_ context.Context, chatID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, "evening")
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	s, err := New(time.UTC, gocron.WithClock(clock))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func at(h, m int) models.TimeOfDay { return models.TimeOfDay{Hour: h, Minute: m} }

func TestRegisterAddsTwoJobs(t *testing.T) {
	s := newTestScheduler(t)

	if err := s.Register(1, at(7, 30), at(22, 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	jobs := s.Jobs(1)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	names := map[string]bool{}
	for _, j := range jobs {
		names[j.Name()] = true
	}
	if !names["chat:1:morning"] || !names["chat:1:evening"] {
		t.Fatalf("unexpected job names: %v", names)
	}
}

func TestRegisterReplacesPreviousJobs(t *testing.T) {
	s := newTestScheduler(t)

	for _, m := range []int{7, 8, 9} {
		if err := s.Register(1, at(m, 0), at(22, 0)); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	if err := s.Register(2, at(6, 0), at(21, 0)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if n := len(s.Jobs(1)); n != 2 {
		t.Fatalf("chat 1: expected 2 jobs after re-registration, got %d", n)
	}
	if n := len(s.Jobs(2)); n != 2 {
		t.Fatalf("chat 2: expected 2 jobs, got %d", n)
	}
}

func TestCancelRemovesOnlyThatChat(t *testing.T) {
	s := newTestScheduler(t)
	_ = s.Register(1, at(7, 0), at(22, 0))
	_ = s.Register(2, at(7, 0), at(22, 0))

	s.Cancel(1)

	if n := len(s.Jobs(1)); n != 0 {
		t.Fatalf("expected chat 1 jobs removed, got %d", n)
	}
	if n := len(s.Jobs(2)); n != 2 {
		t.Fatalf("expected chat 2 jobs kept, got %d", n)
	}
}

func TestRestoreSkipsUnfinishedChats(t *testing.T) {
	s := newTestScheduler(t)

	done := models.ChatState{ChatID: 1}
	done.Onboard(30, at(7, 30), at(22, 0), models.DateOf(time.Now()))
	pending := models.ChatState{ChatID: 2, Age: 40}

	if err := s.Restore([]models.ChatState{done, pending}); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n := len(s.Jobs(1)); n != 2 {
		t.Fatalf("expected 2 jobs for onboarded chat, got %d", n)
	}
	if n := len(s.Jobs(2)); n != 0 {
		t.Fatalf("expected no jobs for unfinished chat, got %d", n)
	}
}

func TestFireDispatchesByKind(t *testing.T) {
	s := newTestScheduler(t)
	n := &recordingNotifier{}
	s.notifier = n

	s.fire(1, models.PromptMorning)
	s.fire(1, models.PromptEvening)

	if len(n.calls) != 2 || n.calls[0] != "morning" || n.calls[1] != "evening" {
		t.Fatalf("unexpected calls: %v", n.calls)
	}
}
