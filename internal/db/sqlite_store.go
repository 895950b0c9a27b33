package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/qforms/internal/questionnaire"
	"github.com/soaringjerry/qforms/internal/services"
)

// SQLiteStore keeps questionnaires, answer sets and users in one SQLite
// database. Question definitions and answers are JSON columns.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ services.QuestionnaireStore = (*SQLiteStore)(nil)
	_ services.UserStore          = (*SQLiteStore)(nil)
)

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// OpenSQLite opens the file at path, applies migrations and returns a store.
func OpenSQLite(ctx context.Context, path, migrationsDir string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000&_foreign_keys=on", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := RunMigrations(ctx, db, migrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	st, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) logErr(op string, err error) {
	if err != nil {
		slog.Error("sqlite store", slog.String("op", op), slog.String("error", err.Error()))
	}
}

// timeLayout is fixed width so stored timestamps sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

// parseTime also reads rows written with trimmed fractions.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func (s *SQLiteStore) InsertQuestionnaire(ctx context.Context, rec *questionnaire.Record) error {
	questions, err := json.Marshal(rec.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questionnaires
      (id, owner_id, title, description, accept_answers, questions, version, created_at, updated_at)
      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OwnerID, rec.Title, rec.Description, boolToInt64(rec.AcceptAnswers), string(questions),
		rec.Version, formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt))
	return err
}

const questionnaireColumns = `id, owner_id, title, description, accept_answers, questions, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*questionnaire.Record, error) {
	var (
		rec              questionnaire.Record
		accept           int64
		questions        string
		created, updated string
	)
	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Description, &accept, &questions, &rec.Version, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &rec.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", rec.ID, err)
	}
	rec.AcceptAnswers = accept != 0
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	return &rec, nil
}

func (s *SQLiteStore) answerSetIDs(ctx context.Context, questionnaireID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM answer_sets WHERE questionnaire_id = ? ORDER BY submitted_at ASC, id ASC`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) GetQuestionnaire(ctx context.Context, id string) (*questionnaire.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logErr("GetQuestionnaire", err)
		return nil, err
	}
	if rec.AnswerSetIDs, err = s.answerSetIDs(ctx, id); err != nil {
		return nil, fmt.Errorf("list answer set ids: %w", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListQuestionnairesByOwner(ctx context.Context, ownerID string) ([]*questionnaire.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+questionnaireColumns+` FROM questionnaires WHERE owner_id = ? ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	var out []*questionnaire.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for _, rec := range out {
		if rec.AnswerSetIDs, err = s.answerSetIDs(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("list answer set ids: %w", err)
		}
	}
	return out, nil
}

type guard int

const (
	guardVersion guard = iota
	guardUnanswered
	guardOpen
)

// refusal explains why a guarded write matched no row.
func (s *SQLiteStore) refusal(ctx context.Context, id string, expectedVersion int, g guard) error {
	var version, accept, answers int64
	err := s.db.QueryRowContext(ctx, `SELECT q.version, q.accept_answers,
      (SELECT COUNT(1) FROM answer_sets a WHERE a.questionnaire_id = q.id)
      FROM questionnaires q WHERE q.id = ?`, id).Scan(&version, &accept, &answers)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return services.ErrQuestionnaireNotFound
	case err != nil:
		return err
	case int(version) != expectedVersion:
		return services.ErrConcurrentUpdate
	case g == guardOpen && accept == 0:
		return services.ErrAnswersNotAccepted
	case g == guardUnanswered && answers > 0:
		return services.ErrHasAnswers
	}
	return services.ErrConcurrentUpdate
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) UpdateQuestionnaire(ctx context.Context, rec *questionnaire.Record, expectedVersion int) error {
	questions, err := json.Marshal(rec.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE questionnaires
      SET title = ?, description = ?, accept_answers = ?, questions = ?, version = ?, updated_at = ?
      WHERE id = ? AND version = ?
        AND NOT EXISTS (SELECT 1 FROM answer_sets WHERE questionnaire_id = ?)`,
		rec.Title, rec.Description, boolToInt64(rec.AcceptAnswers), string(questions), rec.Version, formatTime(rec.UpdatedAt),
		rec.ID, expectedVersion, rec.ID)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil || ok {
		return err
	}
	return s.refusal(ctx, rec.ID, expectedVersion, guardUnanswered)
}

func (s *SQLiteStore) SetAcceptAnswers(ctx context.Context, id string, accept bool, expectedVersion int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questionnaires
      SET accept_answers = ?, version = version + 1, updated_at = ?
      WHERE id = ? AND version = ?`,
		boolToInt64(accept), formatTime(time.Now()), id, expectedVersion)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil || ok {
		return err
	}
	return s.refusal(ctx, id, expectedVersion, guardVersion)
}

func (s *SQLiteStore) DeleteQuestionnaire(ctx context.Context, id string, expectedVersion int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questionnaires
      WHERE id = ? AND version = ?
        AND NOT EXISTS (SELECT 1 FROM answer_sets WHERE questionnaire_id = ?)`,
		id, expectedVersion, id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil || ok {
		return err
	}
	return s.refusal(ctx, id, expectedVersion, guardUnanswered)
}

func (s *SQLiteStore) InsertAnswerSet(ctx context.Context, set *questionnaire.AnswerSet, expectedVersion int) error {
	answers, err := json.Marshal(set.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO answer_sets (id, questionnaire_id, issuer_id, submitted_at, answers)
      SELECT ?, ?, ?, ?, ?
      WHERE EXISTS (SELECT 1 FROM questionnaires WHERE id = ? AND version = ? AND accept_answers = 1)`,
		set.ID, set.QuestionnaireID, set.IssuerID, formatTime(set.SubmittedAt), string(answers),
		set.QuestionnaireID, expectedVersion)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil || ok {
		return err
	}
	return s.refusal(ctx, set.QuestionnaireID, expectedVersion, guardOpen)
}

func (s *SQLiteStore) ListAnswerSets(ctx context.Context, questionnaireID string) ([]*questionnaire.AnswerSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, questionnaire_id, issuer_id, submitted_at, answers
      FROM answer_sets WHERE questionnaire_id = ? ORDER BY submitted_at ASC, id ASC`, questionnaireID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*questionnaire.AnswerSet
	for rows.Next() {
		var (
			set             questionnaire.AnswerSet
			submitted, blob string
		)
		if err := rows.Scan(&set.ID, &set.QuestionnaireID, &set.IssuerID, &submitted, &blob); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(blob), &set.Answers); err != nil {
			s.logErr("ListAnswerSets decode", err)
			return nil, fmt.Errorf("decode answers of %s: %w", set.ID, err)
		}
		set.SubmittedAt = parseTime(submitted)
		out = append(out, &set)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*services.User, error) {
	var (
		u       services.User
		admin   int64
		created string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, email, pass_hash, admin, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.PassHash, &admin, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logErr("FindUserByEmail", err)
		return nil, err
	}
	u.Admin = admin != 0
	u.CreatedAt = parseTime(created)
	return &u, nil
}

func (s *SQLiteStore) InsertUser(ctx context.Context, u *services.User) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, email, pass_hash, admin, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(strings.TrimSpace(u.Email)), u.PassHash, boolToInt64(u.Admin), formatTime(u.CreatedAt))
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return services.NewConflictError("email exists")
	}
	return err
}
