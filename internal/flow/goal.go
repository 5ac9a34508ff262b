package flow

import (
	"errors"
	"fmt"
	"strings"

	"life-weeks-bot/internal/messages"
	"life-weeks-bot/internal/models"
)

// Action is a button choice on a daily prompt.
type Action string

const (
	ActionSetGoal      Action = "set_goal"
	ActionSkip         Action = "skip"
	ActionCompleted    Action = "completed"
	ActionNotCompleted Action = "not_completed"
)

// ParseAction validates a raw action string taken from callback data.
func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionSetGoal, ActionSkip, ActionCompleted, ActionNotCompleted:
		return a, true
	}
	return "", false
}

// Kind is the prompt an action belongs to.
func (a Action) Kind() models.PromptKind {
	switch a {
	case ActionCompleted, ActionNotCompleted:
		return models.PromptEvening
	}
	return models.PromptMorning
}

// Choose applies a prompt button to the chat. Buttons are refused while
// onboarding is in progress. A missing or unfinished chat record turns every
// choice into the missing-information reply. Any accepted choice ends a
// pending goal capture.
func Choose(s models.Session, st *models.ChatState, a Action) Transition {
	if s.Onboarding() {
		return stay(s, Reply{Text: messages.FinishSetupFirst}, Reply{Text: question(s.Stage)})
	}
	s = s.Idle()
	if !st.Onboarded() {
		return stay(s, Reply{Text: messages.MissingInfo})
	}
	next := *st

	var err error
	switch a {
	case ActionSetGoal:
		s.Stage = models.StageAwaitingGoalText
		return stay(s, Reply{Text: messages.AskGoal})
	case ActionSkip:
		err = next.SkipDay()
	case ActionCompleted:
		err = next.CompleteGoal()
	case ActionNotCompleted:
		err = next.FailGoal()
	default:
		return stay(s)
	}
	if err != nil {
		return stay(s, Reply{Text: replyFor(err)})
	}

	var text string
	switch a {
	case ActionSkip:
		text = messages.SkippingGoal
	case ActionCompleted:
		text = fmt.Sprintf(messages.GoalCompletedFmt, next.Streak)
	default:
		text = messages.GoalNotCompleted
	}
	return stay(s, Save{State: next}, Reply{Text: text})
}

// question is the onboarding question asked in stage.
func question(stage models.Stage) string {
	switch stage {
	case models.StageAwaitingMorningTime:
		return messages.AskMorningTime
	case models.StageAwaitingEveningTime:
		return messages.AskEveningTime
	}
	return messages.AskAge
}

func goalText(s models.Session, st *models.ChatState, text string) Transition {
	if strings.TrimSpace(text) == "" {
		return stay(s, Reply{Text: messages.AskGoal})
	}
	if st == nil {
		return stay(s.Idle(), Reply{Text: messages.MissingInfo})
	}
	next := *st
	if err := next.SetDayGoal(text); err != nil {
		return stay(s.Idle(), Reply{Text: replyFor(err)})
	}
	return stay(s.Idle(), Save{State: next}, Reply{Text: fmt.Sprintf(messages.GoalSetFmt, text)})
}

func replyFor(err error) string {
	if errors.Is(err, models.ErrNotOnboarded) {
		return messages.MissingInfo
	}
	return err.Error()
}
