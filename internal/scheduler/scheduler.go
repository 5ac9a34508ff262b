package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"life-weeks-bot/internal/models"
)

// notifyTimeout bounds a single notification delivery.
const notifyTimeout = 30 * time.Second

// Notifier delivers the daily prompts of a chat.
type Notifier interface {
	SendMorning(ctx context.Context, chatID int64) error
	SendEvening(ctx context.Context, chatID int64) error
}

// Scheduler keeps two daily jobs per onboarded chat.
type Scheduler struct {
	s        gocron.Scheduler
	notifier Notifier
}

// New creates a stopped scheduler running jobs in loc.
func New(loc *time.Location, opts ...gocron.SchedulerOption) (*Scheduler, error) {
	opts = append([]gocron.SchedulerOption{gocron.WithLocation(loc)}, opts...)
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	return &Scheduler{s: s}, nil
}

// Start begins firing jobs through n. Jobs registered earlier are kept.
func (s *Scheduler) Start(n Notifier) {
	s.notifier = n
	s.s.Start()
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error {
	return s.s.Shutdown()
}

func chatTag(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// Register replaces the chat's jobs with a morning and an evening job.
func (s *Scheduler) Register(chatID int64, morning, evening models.TimeOfDay) error {
	tag := chatTag(chatID)
	s.s.RemoveByTags(tag)

	jobs := []struct {
		kind models.PromptKind
		at   models.TimeOfDay
	}{
		{models.PromptMorning, morning},
		{models.PromptEvening, evening},
	}
	for _, j := range jobs {
		_, err := s.s.NewJob(
			gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(j.at.Hour), uint(j.at.Minute), 0))),
			gocron.NewTask(s.fire, chatID, j.kind),
			gocron.WithName(tag+":"+string(j.kind)),
			gocron.WithTags(tag, string(j.kind)),
		)
		if err != nil {
			s.s.RemoveByTags(tag)
			return fmt.Errorf("schedule %s notification for chat %d: %w", j.kind, chatID, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"chat_id": chatID,
		"morning": morning.String(),
		"evening": evening.String(),
	}).Info("notifications scheduled")
	return nil
}

// Cancel removes the chat's jobs.
func (s *Scheduler) Cancel(chatID int64) {
	s.s.RemoveByTags(chatTag(chatID))
}

// Restore registers jobs for every onboarded chat, e.g. after a restart.
func (s *Scheduler) Restore(chats []models.ChatState) error {
	for i := range chats {
		c := &chats[i]
		if !c.Onboarded() {
			continue
		}
		if err := s.Register(c.ChatID, c.MorningAt, c.EveningAt); err != nil {
			return err
		}
	}
	return nil
}

// Jobs lists the jobs registered for a chat.
func (s *Scheduler) Jobs(chatID int64) []gocron.Job {
	tag := chatTag(chatID)
	var res []gocron.Job
	for _, j := range s.s.Jobs() {
		for _, t := range j.Tags() {
			if t == tag {
				res = append(res, j)
				break
			}
		}
	}
	return res
}

func (s *Scheduler) fire(chatID int64, kind models.PromptKind) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	var err error
	switch kind {
	case models.PromptMorning:
		err = s.notifier.SendMorning(ctx, chatID)
	case models.PromptEvening:
		err = s.notifier.SendEvening(ctx, chatID)
	}
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"chat_id": chatID,
			"kind":    kind,
		}).Error("notification failed")
	}
}
