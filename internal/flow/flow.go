// Package flow holds the conversation state machines of the bot: the linear
// onboarding (age, morning time, evening time) and the day goal micro-flow
// driven by the daily prompts.
//
// Transitions are pure: they take the current session (and chat record where
// needed) plus an input and return the next session with an ordered list of
// effects. Applying the effects (storage, replies, scheduling) is up to the
// caller.
package flow

import (
	"regexp"
	"strconv"
	"strings"

	"life-weeks-bot/internal/messages"
	"life-weeks-bot/internal/models"
)

var ageRx = regexp.MustCompile(`^[0-9]$|^[1-9][0-9]$`)

type EventKind int

const (
	EventText EventKind = iota
	EventStart
	EventCancel
)

// Event is a user input relevant to the state machines.
type Event struct {
	Kind EventKind
	Text string
}

func Text(s string) Event { return Event{Kind: EventText, Text: s} }
func Start() Event        { return Event{Kind: EventStart} }
func Cancel() Event       { return Event{Kind: EventCancel} }

// Effect is a side effect requested by a transition.
type Effect interface {
	effect()
}

// Reply sends Text to the chat.
type Reply struct {
	Text string
}

// Commit finishes onboarding with the collected answers.
type Commit struct {
	Age     int
	Morning models.TimeOfDay
	Evening models.TimeOfDay
}

// ShowStatus sends the rendered status of the chat.
type ShowStatus struct{}

// Save persists the updated chat record.
type Save struct {
	State models.ChatState
}

func (Reply) effect()      {}
func (Commit) effect()     {}
func (ShowStatus) effect() {}
func (Save) effect()       {}

// Transition is the outcome of feeding an input to a state machine.
type Transition struct {
	Session models.Session
	Effects []Effect
}

func stay(s models.Session, effects ...Effect) Transition {
	return Transition{Session: s, Effects: effects}
}

// Next routes ev to the machine owning the session's stage. st may be nil
// when the chat has no record yet.
func Next(s models.Session, st *models.ChatState, ev Event) Transition {
	if ev.Kind == EventText && s.Stage == models.StageAwaitingGoalText {
		return goalText(s, st, ev.Text)
	}
	return Onboard(s, ev)
}

// Onboard is the onboarding transition function. Start restarts from the age
// question in any stage; Cancel aborts any active stage and drops the draft.
func Onboard(s models.Session, ev Event) Transition {
	switch ev.Kind {
	case EventStart:
		next := s.Idle()
		next.Stage = models.StageAwaitingAge
		return stay(next, Reply{Text: messages.AskAge})
	case EventCancel:
		if s.Stage == "" || s.Stage == models.StageIdle {
			return stay(s, Reply{Text: messages.NothingToCancel})
		}
		return stay(s.Idle(), Reply{Text: messages.Canceled})
	}

	text := strings.TrimSpace(ev.Text)
	switch s.Stage {
	case models.StageAwaitingAge:
		if !ageRx.MatchString(text) {
			return stay(s, Reply{Text: messages.InvalidAge})
		}
		age, _ := strconv.Atoi(text)
		s.DraftAge = &age
		s.Stage = models.StageAwaitingMorningTime
		return stay(s, Reply{Text: messages.AskMorningTime})

	case models.StageAwaitingMorningTime:
		at, err := models.ParseTimeOfDay(text)
		if err != nil {
			return stay(s, Reply{Text: messages.InvalidTime})
		}
		s.DraftMorning = &at
		s.Stage = models.StageAwaitingEveningTime
		return stay(s, Reply{Text: messages.AskEveningTime})

	case models.StageAwaitingEveningTime:
		at, err := models.ParseTimeOfDay(text)
		if err != nil {
			return stay(s, Reply{Text: messages.InvalidTime})
		}
		if s.DraftAge == nil || s.DraftMorning == nil {
			// Incomplete draft, start over.
			next := s.Idle()
			next.Stage = models.StageAwaitingAge
			return stay(next, Reply{Text: messages.AskAge})
		}
		commit := Commit{Age: *s.DraftAge, Morning: *s.DraftMorning, Evening: at}
		return stay(s.Idle(), commit, Reply{Text: messages.AllSet}, ShowStatus{})
	}

	// Idle: free text outside of any flow is ignored.
	return stay(s)
}
