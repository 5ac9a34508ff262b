package handlers

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/flow"
	"life-weeks-bot/internal/messages"
	"life-weeks-bot/internal/storage"
)

type choice struct {
	label  string
	action flow.Action
}

var (
	morningChoices = [2]choice{
		{messages.BtnSetGoal, flow.ActionSetGoal},
		{messages.BtnSkip, flow.ActionSkip},
	}
	eveningChoices = [2]choice{
		{messages.BtnCompleted, flow.ActionCompleted},
		{messages.BtnNotCompleted, flow.ActionNotCompleted},
	}
)

// callback data: "<action>:<token>"
func callbackData(a flow.Action, token string) string {
	return string(a) + ":" + token
}

func parseCallbackData(data string) (flow.Action, string, bool) {
	raw, token, found := strings.Cut(data, ":")
	if !found || token == "" {
		return "", "", false
	}
	a, ok := flow.ParseAction(raw)
	return a, token, ok
}

func promptKeyboard(token string, choices [2]choice) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(choices[0].label, callbackData(choices[0].action, token)),
			tgbotapi.NewInlineKeyboardButtonData(choices[1].label, callbackData(choices[1].action, token)),
		),
	)
}

// HandleCallback acts on a prompt button. Each prompt is acted upon at most
// once, and only from the chat it was sent to: the claim in storage decides,
// and the buttons are removed afterwards.
func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	log := logrus.WithField("chat_id", chatID)

	action, token, ok := parseCallbackData(cq.Data)
	if !ok {
		h.answer(cq.ID, "")
		return
	}

	sess, err := h.DB.GetSession(ctx, chatID)
	if err != nil {
		log.WithError(err).Error("load session")
		h.answer(cq.ID, "")
		return
	}
	if sess.Onboarding() {
		// the prompt stays open until onboarding is over
		h.answer(cq.ID, "")
		h.apply(ctx, chatID, flow.Choose(sess, nil, action))
		return
	}

	_, err = h.DB.ClaimPrompt(ctx, chatID, token, action.Kind(), h.now())
	switch {
	case errors.Is(err, storage.ErrPromptAnswered):
		h.answer(cq.ID, messages.AlreadyAnswered)
		h.removeKeyboard(chatID, cq.Message.MessageID)
		return
	case errors.Is(err, storage.ErrPromptNotFound):
		h.answer(cq.ID, "")
		h.removeKeyboard(chatID, cq.Message.MessageID)
		return
	case err != nil:
		log.WithError(err).Error("claim prompt")
		h.answer(cq.ID, "")
		return
	}

	// always answer callback to remove 'loading...'
	h.answer(cq.ID, "")
	h.removeKeyboard(chatID, cq.Message.MessageID)

	st, err := h.DB.GetChat(ctx, chatID)
	if err != nil {
		log.WithError(err).Error("load chat")
		return
	}

	log.WithField("action", action).Debug("prompt answered")
	h.apply(ctx, chatID, flow.Choose(sess, st, action))
}

func (h *Handler) answer(callbackID, text string) {
	if _, err := h.Bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logrus.WithError(err).Warn("answer callback")
	}
}

func (h *Handler) removeKeyboard(chatID int64, messageID int) {
	empty := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	if _, err := h.Bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, empty)); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Warn("remove keyboard")
	}
}
