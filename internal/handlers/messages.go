package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/messages"
	"life-weeks-bot/internal/models"
)

// --- morning / evening messages ----------

// SendMorning sends the status with the "Set goal" / "Skip" choice.
func (h *Handler) SendMorning(ctx context.Context, chatID int64) error {
	unlock := h.locks.lock(chatID)
	defer unlock()

	st, err := h.DB.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !st.Onboarded() {
		return nil
	}
	return h.sendPrompt(ctx, chatID, models.PromptMorning, messages.Status(st, h.now()), morningChoices)
}

// SendEvening asks whether the day goal was completed. Nothing is sent when
// no goal was set.
func (h *Handler) SendEvening(ctx context.Context, chatID int64) error {
	unlock := h.locks.lock(chatID)
	defer unlock()

	st, err := h.DB.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !st.Onboarded() || st.DayGoal == "" {
		return nil
	}
	return h.sendPrompt(ctx, chatID, models.PromptEvening, fmt.Sprintf(messages.EveningQuestion, st.DayGoal), eveningChoices)
}

// sendPrompt closes older prompts of the same kind, then sends a new one
// under a fresh correlation token.
func (h *Handler) sendPrompt(ctx context.Context, chatID int64, kind models.PromptKind, text string, choices [2]choice) error {
	expired, err := h.DB.ExpirePrompts(ctx, chatID, kind, h.now())
	if err != nil {
		return err
	}
	for _, p := range expired {
		h.removeKeyboard(chatID, p.MessageID)
	}

	token := uuid.NewString()
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = promptKeyboard(token, choices)
	sent, err := h.Bot.Send(msg)
	if err != nil {
		if blocked(err) {
			h.Sched.Cancel(chatID)
			logrus.WithField("chat_id", chatID).Info("bot blocked by user, notifications canceled")
		}
		return fmt.Errorf("send %s prompt: %w", kind, err)
	}

	logrus.WithFields(logrus.Fields{
		"chat_id": chatID,
		"kind":    kind,
		"msg_id":  sent.MessageID,
	}).Debug("prompt sent")

	return h.DB.InsertPrompt(ctx, &models.Prompt{
		Token:     token,
		ChatID:    chatID,
		Kind:      kind,
		MessageID: sent.MessageID,
		CreatedAt: h.now().Unix(),
	})
}

// blocked reports whether Telegram refused delivery to the chat for good,
// e.g. the user blocked the bot.
func blocked(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden
}
