package handlers

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/flow"
	"life-weeks-bot/internal/models"
	"life-weeks-bot/internal/storage"
)

// Sender is the part of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Scheduler manages the daily notifications of a chat.
type Scheduler interface {
	Register(chatID int64, morning, evening models.TimeOfDay) error
	Cancel(chatID int64)
}

type Handler struct {
	Bot   Sender
	DB    *storage.DB
	Sched Scheduler
	Clock clockwork.Clock
	Loc   *time.Location

	locks chatLocks
}

func NewHandler(bot Sender, db *storage.DB, sched Scheduler, clock clockwork.Clock, loc *time.Location) *Handler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{Bot: bot, DB: db, Sched: sched, Clock: clock, Loc: loc}
}

// now is the wall clock in the configured location.
func (h *Handler) now() time.Time {
	return h.Clock.Now().In(h.Loc)
}

// HandleUpdate routes one update. Updates of the same chat are processed one
// at a time; scheduled notifications take the same lock.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.Chat != nil:
		unlock := h.locks.lock(upd.Message.Chat.ID)
		defer unlock()
		h.HandleMessage(ctx, upd.Message)

	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil:
		unlock := h.locks.lock(upd.CallbackQuery.Message.Chat.ID)
		defer unlock()
		h.HandleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		h.HandleCommand(ctx, msg)
		return
	}
	h.HandleText(ctx, msg)
}

// HandleText feeds free text to the conversation of the chat.
func (h *Handler) HandleText(ctx context.Context, msg *tgbotapi.Message) {
	h.step(ctx, msg.Chat.ID, flow.Text(msg.Text))
}

// step runs one transition of the chat's conversation and applies it.
func (h *Handler) step(ctx context.Context, chatID int64, ev flow.Event) {
	log := logrus.WithField("chat_id", chatID)

	sess, err := h.DB.GetSession(ctx, chatID)
	if err != nil {
		log.WithError(err).Error("load session")
		return
	}
	var st *models.ChatState
	if ev.Kind == flow.EventText && sess.Stage == models.StageAwaitingGoalText {
		if st, err = h.DB.GetChat(ctx, chatID); err != nil {
			log.WithError(err).Error("load chat")
			return
		}
	}

	tr := flow.Next(sess, st, ev)
	h.apply(ctx, chatID, tr)
}

func (h *Handler) send(chatID int64, text string) {
	if _, err := h.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("send message")
	}
}

type chatLocks struct {
	mu sync.Mutex
	m  map[int64]*sync.Mutex
}

func (l *chatLocks) lock(chatID int64) (unlock func()) {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[int64]*sync.Mutex)
	}
	mu, ok := l.m[chatID]
	if !ok {
		mu = &sync.Mutex{}
		l.m[chatID] = mu
	}
	l.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
