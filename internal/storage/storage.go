package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"life-weeks-bot/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	// ErrPromptNotFound is returned when a callback token matches no prompt of the expected kind.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrPromptAnswered is returned when a prompt was already acted upon.
	ErrPromptAnswered = errors.New("prompt already answered")
)

type DB struct{ *sqlx.DB }

// New opens the sqlite database at path and applies pending migrations.
func New(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	if err = migrateUp(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	drv, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	fromVer, _, _ := m.Version()
	start := time.Now()
	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return fmt.Errorf("migration execution failed: %w", err)
	}
	toVer, _, _ := m.Version()

	logrus.WithFields(logrus.Fields{
		"from_ver": fromVer,
		"to_ver":   toVer,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("migrations applied")
	return nil
}

// ---------- chats -----------------------------------------------------------

func (d *DB) SaveChat(ctx context.Context, c *models.ChatState) error {
	c.UpdatedAt = time.Now().Unix()
	_, err := d.NamedExecContext(ctx, `
        INSERT INTO chats (chat_id, age, morning_at, evening_at, start_date,
                           start_week, start_day, day_goal, streak, updated_at)
        VALUES (:chat_id, :age, :morning_at, :evening_at, :start_date,
                :start_week, :start_day, :day_goal, :streak, :updated_at)
        ON CONFLICT(chat_id) DO UPDATE SET age=excluded.age,
            morning_at=excluded.morning_at,
            evening_at=excluded.evening_at,
            start_date=excluded.start_date,
            start_week=excluded.start_week,
            start_day=excluded.start_day,
            day_goal=excluded.day_goal,
            streak=excluded.streak,
            updated_at=excluded.updated_at
    `, c)
	if err != nil {
		return fmt.Errorf("save chat %d: %w", c.ChatID, err)
	}
	return nil
}

// GetChat returns nil, nil when the chat has no record.
func (d *DB) GetChat(ctx context.Context, chatID int64) (*models.ChatState, error) {
	var c models.ChatState
	err := d.GetContext(ctx, &c, `SELECT * FROM chats WHERE chat_id=?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return &c, nil
}

// ListChats returns every chat that finished onboarding.
func (d *DB) ListChats(ctx context.Context) ([]models.ChatState, error) {
	var res []models.ChatState
	if err := d.SelectContext(ctx, &res, `SELECT * FROM chats WHERE start_date IS NOT NULL ORDER BY chat_id`); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return res, nil
}

// ---------- sessions (fsm) --------------------------------------------------

func (d *DB) SaveSession(ctx context.Context, s models.Session) error {
	if s.Stage == "" {
		s.Stage = models.StageIdle
	}
	_, err := d.NamedExecContext(ctx, `
        INSERT INTO sessions (chat_id, stage, draft_age, draft_morning)
        VALUES (:chat_id, :stage, :draft_age, :draft_morning)
        ON CONFLICT(chat_id) DO UPDATE SET stage=excluded.stage,
            draft_age=excluded.draft_age,
            draft_morning=excluded.draft_morning
    `, s)
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.ChatID, err)
	}
	return nil
}

// GetSession returns an idle session when none is stored.
func (d *DB) GetSession(ctx context.Context, chatID int64) (models.Session, error) {
	var s models.Session
	err := d.GetContext(ctx, &s, `SELECT chat_id, stage, draft_age, draft_morning FROM sessions WHERE chat_id=?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{ChatID: chatID, Stage: models.StageIdle}, nil
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("get session %d: %w", chatID, err)
	}
	return s, nil
}

// ---------- prompts ---------------------------------------------------------

func (d *DB) InsertPrompt(ctx context.Context, p *models.Prompt) error {
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	_, err := d.NamedExecContext(ctx, `
        INSERT INTO prompts (token, chat_id, kind, message_id, created_at, answered_at)
        VALUES (:token, :chat_id, :kind, :message_id, :created_at, :answered_at)
    `, p)
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

// GetPrompt returns nil, nil for an unknown token.
func (d *DB) GetPrompt(ctx context.Context, token string) (*models.Prompt, error) {
	var p models.Prompt
	err := d.GetContext(ctx, &p, `SELECT * FROM prompts WHERE token=?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &p, nil
}

// ClaimPrompt marks the prompt answered. Only the first claim of a token
// succeeds; later ones get ErrPromptAnswered together with the prompt.
// A token sent to another chat is reported as ErrPromptNotFound.
func (d *DB) ClaimPrompt(ctx context.Context, chatID int64, token string, kind models.PromptKind, at time.Time) (*models.Prompt, error) {
	res, err := d.ExecContext(ctx, `
        UPDATE prompts SET answered_at = ?
        WHERE token = ? AND chat_id = ? AND kind = ? AND answered_at IS NULL`, at.Unix(), token, chatID, kind)
	if err != nil {
		return nil, fmt.Errorf("claim prompt: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim prompt: %w", err)
	}

	p, err := d.GetPrompt(ctx, token)
	if err != nil {
		return nil, err
	}
	if p == nil || p.ChatID != chatID || p.Kind != kind {
		return nil, ErrPromptNotFound
	}
	if n == 0 {
		return p, ErrPromptAnswered
	}
	return p, nil
}

// ExpirePrompts closes every open prompt of kind for the chat and returns
// them so their buttons can be removed.
func (d *DB) ExpirePrompts(ctx context.Context, chatID int64, kind models.PromptKind, at time.Time) ([]models.Prompt, error) {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var open []models.Prompt
	if err := tx.SelectContext(ctx, &open, `
        SELECT * FROM prompts
        WHERE chat_id = ? AND kind = ? AND answered_at IS NULL`, chatID, kind); err != nil {
		return nil, fmt.Errorf("expire prompts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE prompts SET answered_at = ?
        WHERE chat_id = ? AND kind = ? AND answered_at IS NULL`, at.Unix(), chatID, kind); err != nil {
		return nil, fmt.Errorf("expire prompts: %w", err)
	}
	return open, tx.Commit()
}
