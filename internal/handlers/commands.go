package handlers

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/flow"
	"life-weeks-bot/internal/messages"
)

// Commands is the command list published to Telegram.
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Set up age and notification times"},
	{Command: "status", Description: "Show your progress"},
	{Command: "cancel", Description: "Abort the current setup"},
	{Command: "help", Description: "List commands"},
}

func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		h.step(ctx, chatID, flow.Start())
	case "cancel":
		h.step(ctx, chatID, flow.Cancel())
	case "status":
		h.HandleStatus(ctx, chatID)
	case "help":
		h.send(chatID, messages.Help)
	default:
		h.send(chatID, fmt.Sprintf(messages.UnknownCommandFmt, msg.Text))
	}
}

// HandleStatus replies with the status block, or the missing-information text.
func (h *Handler) HandleStatus(ctx context.Context, chatID int64) {
	st, err := h.DB.GetChat(ctx, chatID)
	if err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("load chat")
		return
	}
	h.send(chatID, messages.Status(st, h.now()))
}

// RegisterCommands publishes Commands so clients show them in the menu.
func RegisterCommands(bot Sender) error {
	_, err := bot.Request(tgbotapi.NewSetMyCommands(Commands...))
	return err
}
