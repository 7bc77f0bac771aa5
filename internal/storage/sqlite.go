// Package storage is the sqlite persistence layer: bot users, giveaways,
// participants, and winners.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"rafflebot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- users ----

func (s *Store) UpsertUser(ctx context.Context, id int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(user_id, username, joined_at) VALUES(?,?,?)
		 ON CONFLICT(user_id) DO UPDATE SET username=excluded.username`,
		id, nullStr(username), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// AllUserIDs is the recipient source for broadcasts: every user who ever
// started the bot.
func (s *Store) AllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// ---- giveaways ----

func (s *Store) CreateGiveaway(ctx context.Context, g Giveaway) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO giveaways(start_at, end_at, description, num_winners, active, announce_text, media_file_id, media_type, created_by, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		fmtTime(g.StartAt), fmtTime(g.EndAt), g.Description, g.NumWinners, boolInt(g.Active),
		nullStr(g.AnnounceText), nullStr(g.MediaFileID), nullStr(g.MediaType),
		g.CreatedByID, fmtTime(time.Now().UTC()),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GiveawayByID(ctx context.Context, id int64) (Giveaway, error) {
	return s.scanGiveaway(s.db.QueryRowContext(ctx, giveawaySelect+` WHERE id = ?`, id))
}

// ActiveGiveaway returns the single currently-active giveaway. The bot runs
// at most one at a time, mirroring the admin workflow.
func (s *Store) ActiveGiveaway(ctx context.Context) (Giveaway, error) {
	return s.scanGiveaway(s.db.QueryRowContext(ctx, giveawaySelect+` WHERE active = 1 ORDER BY id DESC LIMIT 1`))
}

// DueGiveaways lists active giveaways whose end time has passed.
func (s *Store) DueGiveaways(ctx context.Context, now time.Time) ([]Giveaway, error) {
	rows, err := s.db.QueryContext(ctx, giveawaySelect+` WHERE active = 1 AND end_at <= ?`, fmtTime(now.UTC()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Giveaway
	for rows.Next() {
		g, err := s.scanGiveawayRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) FinishGiveaway(ctx context.Context, id int64, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE giveaways SET active = 0, ended_at = ? WHERE id = ?`,
		fmtTime(endedAt.UTC()), id,
	)
	return err
}

const giveawaySelect = `SELECT id, start_at, end_at, description, num_winners, active, announce_text, media_file_id, media_type, created_by, created_at, ended_at FROM giveaways`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanGiveaway(row *sql.Row) (Giveaway, error) {
	g, err := s.scanGiveawayRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Giveaway{}, ErrNotFound
	}
	return g, err
}

func (s *Store) scanGiveawayRow(row rowScanner) (Giveaway, error) {
	var (
		g                              Giveaway
		startAt, endAt, createdAt      string
		announce, fileID, media, ended sql.NullString
		active                         int
	)
	err := row.Scan(&g.ID, &startAt, &endAt, &g.Description, &g.NumWinners, &active, &announce, &fileID, &media, &g.CreatedByID, &createdAt, &ended)
	if err != nil {
		return Giveaway{}, err
	}
	g.Active = active != 0
	g.AnnounceText = announce.String
	g.MediaFileID = fileID.String
	g.MediaType = media.String
	g.StartAt = parseTime(startAt)
	g.EndAt = parseTime(endAt)
	g.CreatedAt = parseTime(createdAt)
	if ended.Valid {
		g.EndedAt = parseTime(ended.String)
	}
	return g, nil
}

// ---- participants ----

// AddParticipant records a join; it reports false when the user already
// participates in that giveaway.
func (s *Store) AddParticipant(ctx context.Context, giveawayID, userID int64, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO participants(giveaway_id, user_id, username, joined_at) VALUES(?,?,?,?)`,
		giveawayID, userID, nullStr(username), fmtTime(time.Now().UTC()),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) Participants(ctx context.Context, giveawayID int64) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT giveaway_id, user_id, username, joined_at FROM participants WHERE giveaway_id = ? ORDER BY joined_at`, giveawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Participant
	for rows.Next() {
		var (
			p        Participant
			username sql.NullString
			joined   string
		)
		if err := rows.Scan(&p.GiveawayID, &p.UserID, &username, &joined); err != nil {
			return nil, err
		}
		p.Username = username.String
		p.JoinedAt = parseTime(joined)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CountParticipants(ctx context.Context, giveawayID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants WHERE giveaway_id = ?`, giveawayID).Scan(&n)
	return n, err
}

// ---- winners ----

func (s *Store) RecordWinners(ctx context.Context, winners []Winner) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, w := range winners {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO winners(giveaway_id, user_id, username, position, notified) VALUES(?,?,?,?,0)`,
			w.GiveawayID, w.UserID, nullStr(w.Username), w.Position,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Winners(ctx context.Context, giveawayID int64) ([]Winner, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT giveaway_id, user_id, username, position, notified FROM winners WHERE giveaway_id = ? ORDER BY position`, giveawayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Winner
	for rows.Next() {
		var (
			w        Winner
			username sql.NullString
			notified int
		)
		if err := rows.Scan(&w.GiveawayID, &w.UserID, &username, &w.Position, &notified); err != nil {
			return nil, err
		}
		w.Username = username.String
		w.Notified = notified != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) MarkWinnersNotified(ctx context.Context, giveawayID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE winners SET notified = 1 WHERE giveaway_id = ?`, giveawayID)
	return err
}

// ---- helpers ----

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
