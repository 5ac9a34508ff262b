package handlers

import (
	"context"

	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/flow"
	"life-weeks-bot/internal/messages"
	"life-weeks-bot/internal/models"
)

// apply executes the effects of tr in order and then stores the session.
// A failing storage effect stops the remaining ones.
func (h *Handler) apply(ctx context.Context, chatID int64, tr flow.Transition) {
	log := logrus.WithField("chat_id", chatID)

	for _, e := range tr.Effects {
		switch e := e.(type) {
		case flow.Reply:
			h.send(chatID, e.Text)

		case flow.Save:
			st := e.State
			if err := h.DB.SaveChat(ctx, &st); err != nil {
				log.WithError(err).Error("save chat")
				return
			}

		case flow.Commit:
			if err := h.finishOnboarding(ctx, chatID, e); err != nil {
				log.WithError(err).Error("finish onboarding")
				return
			}

		case flow.ShowStatus:
			st, err := h.DB.GetChat(ctx, chatID)
			if err != nil {
				log.WithError(err).Error("load chat")
				return
			}
			h.send(chatID, messages.Status(st, h.now()))
		}
	}

	tr.Session.ChatID = chatID
	if err := h.DB.SaveSession(ctx, tr.Session); err != nil {
		log.WithError(err).Error("save session")
	}
}

// finishOnboarding overwrites the chat record and replaces its notifications.
func (h *Handler) finishOnboarding(ctx context.Context, chatID int64, c flow.Commit) error {
	st := models.ChatState{ChatID: chatID}
	st.Onboard(c.Age, c.Morning, c.Evening, models.DateOf(h.now()))
	if err := h.DB.SaveChat(ctx, &st); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"age":        c.Age,
		"start_date": st.StartDate.String(),
	}).Info("onboarding finished")

	if err := h.Sched.Register(chatID, c.Morning, c.Evening); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("schedule notifications")
	}
	return nil
}
