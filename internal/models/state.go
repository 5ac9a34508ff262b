package models

type Stage string

const (
	StageIdle                Stage = "idle"
	StageAwaitingAge         Stage = "awaiting_age"
	StageAwaitingMorningTime Stage = "awaiting_morning_time"
	StageAwaitingEveningTime Stage = "awaiting_evening_time"
	StageAwaitingGoalText    Stage = "awaiting_goal_text"
)

// Session is the conversation position of a chat. DraftAge and DraftMorning
// hold onboarding answers until the last step commits them.
type Session struct {
	ChatID       int64      `db:"chat_id"`
	Stage        Stage      `db:"stage"`
	DraftAge     *int       `db:"draft_age"`
	DraftMorning *TimeOfDay `db:"draft_morning"`
}

// Idle returns s reset to no active conversation.
func (s Session) Idle() Session {
	return Session{ChatID: s.ChatID, Stage: StageIdle}
}

// Onboarding reports whether the chat is in the middle of onboarding.
func (s Session) Onboarding() bool {
	switch s.Stage {
	case StageAwaitingAge, StageAwaitingMorningTime, StageAwaitingEveningTime:
		return true
	}
	return false
}
