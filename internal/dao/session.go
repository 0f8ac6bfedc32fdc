package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/codebuildervaibhav/discussion-analysis/internal/types"
)

// Session is one execution context's view of the store. Its connection is
// acquired on first use and held until Close.
type Session struct {
	db *sql.DB

	mu     sync.Mutex
	conn   *sql.Conn
	closed bool
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Session) acquire(ctx context.Context) (*sql.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.conn == nil {
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire connection: %w", err)
		}
		s.conn = conn
	}
	return s.conn, nil
}

// Close releases the connection. Calling it more than once is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// withTx runs fn in one transaction on the session connection. Any error
// rolls back every statement fn issued.
func (s *Session) withTx(ctx context.Context, op string, fn func(q querier) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return wrap(op, err)
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return wrap(op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return wrap(op, fmt.Errorf("%w (rollback: %v)", err, rbErr))
		}
		return wrap(op, err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (s *Session) read(ctx context.Context, op string, fn func(q querier) error) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return wrap(op, err)
	}
	return wrap(op, fn(conn))
}

const timeLayout = time.RFC3339Nano

// StoreRecording inserts a new recording. A duplicate id fails with
// ErrDataIntegrity and leaves the existing row untouched.
func (s *Session) StoreRecording(ctx context.Context, rec types.Recording) error {
	conn, err := s.acquire(ctx)
	if err != nil {
		return wrap("store recording", err)
	}
	_, err = conn.ExecContext(ctx, `
		INSERT INTO recordings (recording_id, file_path, duration, recording_date, format)
		VALUES (?, ?, ?, ?, ?)`,
		rec.RecordingID, rec.FilePath, rec.Duration, rec.RecordingDate.UTC().Format(timeLayout), rec.Format)
	if err != nil {
		if isConstraint(err) {
			return &DAOError{
				Op:  "store recording",
				Err: fmt.Errorf("%w: recording %s already exists", ErrDataIntegrity, rec.RecordingID),
			}
		}
		return wrap("store recording", err)
	}
	return nil
}

// StoreTranscription inserts all segments atomically.
func (s *Session) StoreTranscription(ctx context.Context, recordingID string, segments []types.TranscriptionSegment) error {
	return s.withTx(ctx, "store transcription", func(q querier) error {
		for i, seg := range segments {
			_, err := q.ExecContext(ctx, `
				INSERT INTO transcriptions (recording_id, speaker_id, start_time, end_time, text, confidence)
				VALUES (?, ?, ?, ?, ?, ?)`,
				recordingID, seg.Speaker, seg.Start, seg.End, seg.Text, seg.Confidence)
			if err != nil {
				return fmt.Errorf("segment %d: %w", i, err)
			}
		}
		return nil
	})
}

func insertTopic(ctx context.Context, q querier, recordingID string, topic types.Topic) (int64, error) {
	var parent sql.NullString
	if topic.ParentTopic != "" {
		parent = sql.NullString{String: topic.ParentTopic, Valid: true}
	}
	var importance sql.NullFloat64
	if topic.ImportanceScore != nil {
		importance = sql.NullFloat64{Float64: *topic.ImportanceScore, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO topics (recording_id, topic_name, start_time, end_time, importance_score, parent_topic)
		VALUES (?, ?, ?, ?, ?, ?)`,
		recordingID, topic.Name, topic.StartTime, topic.EndTime, importance, parent)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// StoreTopic inserts one topic and returns its generated id.
func (s *Session) StoreTopic(ctx context.Context, recordingID string, topic types.Topic) (int64, error) {
	var id int64
	err := s.withTx(ctx, "store topic", func(q querier) error {
		var err error
		id, err = insertTopic(ctx, q, recordingID, topic)
		return err
	})
	return id, err
}

// StoreTopics inserts topics atomically and returns ids in input order.
func (s *Session) StoreTopics(ctx context.Context, recordingID string, topics []types.Topic) ([]int64, error) {
	ids := make([]int64, 0, len(topics))
	err := s.withTx(ctx, "store topics", func(q querier) error {
		for _, t := range topics {
			id, err := insertTopic(ctx, q, recordingID, t)
			if err != nil {
				return fmt.Errorf("topic %q: %w", t.Name, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func insertSentiment(ctx context.Context, q querier, recordingID string, r types.SentimentResult) (int64, error) {
	var confidence sql.NullFloat64
	if r.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *r.Confidence, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO sentiment_analysis (recording_id, speaker_id, timestamp, sentiment_score, confidence, text)
		VALUES (?, ?, ?, ?, ?, ?)`,
		recordingID, r.SpeakerID, r.Timestamp, r.SentimentScore, confidence, r.Text)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Session) StoreSentiment(ctx context.Context, recordingID string, result types.SentimentResult) (int64, error) {
	var id int64
	err := s.withTx(ctx, "store sentiment", func(q querier) error {
		var err error
		id, err = insertSentiment(ctx, q, recordingID, result)
		return err
	})
	return id, err
}

func (s *Session) StoreSentiments(ctx context.Context, recordingID string, results []types.SentimentResult) ([]int64, error) {
	ids := make([]int64, 0, len(results))
	err := s.withTx(ctx, "store sentiments", func(q querier) error {
		for i, r := range results {
			id, err := insertSentiment(ctx, q, recordingID, r)
			if err != nil {
				return fmt.Errorf("sentiment %d: %w", i, err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func (s *Session) StoreArgument(ctx context.Context, arg types.Argument) (int64, error) {
	var id int64
	err := s.withTx(ctx, "store argument", func(q querier) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO arguments (recording_id, topic_id, speaker_id, start_time, end_time, argument_text, argument_type, conclusion)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			arg.RecordingID, nullInt(arg.TopicID), arg.SpeakerID, arg.StartTime, arg.EndTime,
			arg.ArgumentText, arg.ArgumentType, sql.NullString{String: arg.Conclusion, Valid: arg.Conclusion != ""})
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Session) StoreAgreement(ctx context.Context, agreement types.Agreement) (int64, error) {
	var id int64
	err := s.withTx(ctx, "store agreement", func(q querier) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO agreements (argument_id, speaker_id, agreement_type, timestamp)
			VALUES (?, ?, ?, ?)`,
			agreement.ArgumentID, agreement.SpeakerID, agreement.AgreementType, agreement.Timestamp)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Session) StoreGap(ctx context.Context, gap types.Gap) (int64, error) {
	var id int64
	err := s.withTx(ctx, "store gap", func(q querier) error {
		res, err := q.ExecContext(ctx, `
			INSERT INTO gaps (recording_id, topic_id, gap_type, description, importance_score)
			VALUES (?, ?, ?, ?, ?)`,
			gap.RecordingID, nullInt(gap.TopicID), gap.GapType, gap.Description, gap.ImportanceScore)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func scanRecording(row interface{ Scan(...any) error }) (*types.Recording, error) {
	var (
		rec  types.Recording
		date string
	)
	if err := row.Scan(&rec.RecordingID, &rec.FilePath, &rec.Duration, &date, &rec.Format); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, date)
	if err != nil {
		return nil, fmt.Errorf("recording %s: bad recording_date %q: %w", rec.RecordingID, date, err)
	}
	rec.RecordingDate = t
	return &rec, nil
}

// GetRecordingMetadata returns the recording row, or ErrRecordNotFound.
func (s *Session) GetRecordingMetadata(ctx context.Context, recordingID string) (*types.Recording, error) {
	var rec *types.Recording
	err := s.read(ctx, "get recording", func(q querier) error {
		row := q.QueryRowContext(ctx, `
			SELECT recording_id, file_path, duration, recording_date, format
			FROM recordings WHERE recording_id = ?`, recordingID)
		var err error
		rec, err = scanRecording(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: recording %s", ErrRecordNotFound, recordingID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRecordings returns the newest recordings first.
func (s *Session) ListRecordings(ctx context.Context, limit int) ([]types.Recording, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []types.Recording
	err := s.read(ctx, "list recordings", func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT recording_id, file_path, duration, recording_date, format
			FROM recordings ORDER BY recording_date DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecording(rows)
			if err != nil {
				return err
			}
			recs = append(recs, *rec)
		}
		return rows.Err()
	})
	return recs, err
}

// GetTranscription returns segments ordered by start_time, optionally limited
// to those overlapping window.
func (s *Session) GetTranscription(ctx context.Context, recordingID string, window TimeRange) ([]types.TranscriptionSegment, error) {
	query := `SELECT speaker_id, start_time, end_time, text, confidence FROM transcriptions WHERE recording_id = ?`
	args := []any{recordingID}
	if window.Start != nil {
		query += ` AND end_time >= ?`
		args = append(args, *window.Start)
	}
	if window.End != nil {
		query += ` AND start_time <= ?`
		args = append(args, *window.End)
	}
	query += ` ORDER BY start_time ASC, id ASC`

	var segments []types.TranscriptionSegment
	err := s.read(ctx, "get transcription", func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				seg        types.TranscriptionSegment
				confidence sql.NullFloat64
			)
			if err := rows.Scan(&seg.Speaker, &seg.Start, &seg.End, &seg.Text, &confidence); err != nil {
				return err
			}
			seg.Confidence = confidence.Float64
			segments = append(segments, seg)
		}
		return rows.Err()
	})
	return segments, err
}

// GetTopics returns stored topics in start order. ParentTopic is restored;
// Subtopics is left for the caller to derive.
func (s *Session) GetTopics(ctx context.Context, recordingID string) ([]types.Topic, error) {
	var topics []types.Topic
	err := s.read(ctx, "get topics", func(q querier) error {
		var err error
		topics, err = queryTopics(ctx, q, recordingID)
		return err
	})
	return topics, err
}

func queryTopics(ctx context.Context, q querier, recordingID string) ([]types.Topic, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT topic_id, topic_name, start_time, end_time, importance_score, parent_topic
		FROM topics WHERE recording_id = ? ORDER BY start_time ASC, topic_id ASC`, recordingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []types.Topic
	for rows.Next() {
		var (
			t          types.Topic
			id         int64
			importance sql.NullFloat64
			parent     sql.NullString
		)
		if err := rows.Scan(&id, &t.Name, &t.StartTime, &t.EndTime, &importance, &parent); err != nil {
			return nil, err
		}
		t.TopicID = &id
		if importance.Valid {
			v := importance.Float64
			t.ImportanceScore = &v
		}
		t.ParentTopic = parent.String
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (s *Session) GetArguments(ctx context.Context, recordingID string, topicID *int64) ([]types.Argument, error) {
	query := `
		SELECT argument_id, recording_id, topic_id, speaker_id, start_time, end_time, argument_text, argument_type, conclusion
		FROM arguments WHERE recording_id = ?`
	args := []any{recordingID}
	if topicID != nil {
		query += ` AND topic_id = ?`
		args = append(args, *topicID)
	}
	query += ` ORDER BY start_time ASC`

	var out []types.Argument
	err := s.read(ctx, "get arguments", func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				a          types.Argument
				topic      sql.NullInt64
				conclusion sql.NullString
			)
			if err := rows.Scan(&a.ArgumentID, &a.RecordingID, &topic, &a.SpeakerID, &a.StartTime, &a.EndTime,
				&a.ArgumentText, &a.ArgumentType, &conclusion); err != nil {
				return err
			}
			if topic.Valid {
				v := topic.Int64
				a.TopicID = &v
			}
			a.Conclusion = conclusion.String
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Session) GetAgreements(ctx context.Context, recordingID string, argumentID *int64) ([]types.Agreement, error) {
	query := `
		SELECT ag.agreement_id, ag.argument_id, ag.speaker_id, ag.agreement_type, ag.timestamp
		FROM agreements ag JOIN arguments a ON a.argument_id = ag.argument_id
		WHERE a.recording_id = ?`
	args := []any{recordingID}
	if argumentID != nil {
		query += ` AND ag.argument_id = ?`
		args = append(args, *argumentID)
	}
	query += ` ORDER BY ag.timestamp ASC`

	var out []types.Agreement
	err := s.read(ctx, "get agreements", func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a types.Agreement
			if err := rows.Scan(&a.AgreementID, &a.ArgumentID, &a.SpeakerID, &a.AgreementType, &a.Timestamp); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Session) GetGaps(ctx context.Context, recordingID string, topicID *int64) ([]types.Gap, error) {
	query := `
		SELECT gap_id, recording_id, topic_id, gap_type, description, importance_score
		FROM gaps WHERE recording_id = ?`
	args := []any{recordingID}
	if topicID != nil {
		query += ` AND topic_id = ?`
		args = append(args, *topicID)
	}
	query += ` ORDER BY importance_score DESC, gap_id ASC`

	var out []types.Gap
	err := s.read(ctx, "get gaps", func(q querier) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				g     types.Gap
				topic sql.NullInt64
			)
			if err := rows.Scan(&g.GapID, &g.RecordingID, &topic, &g.GapType, &g.Description, &g.ImportanceScore); err != nil {
				return err
			}
			if topic.Valid {
				v := topic.Int64
				g.TopicID = &v
			}
			out = append(out, g)
		}
		return rows.Err()
	})
	return out, err
}

// GetSentimentAnalysis rebuilds a summary from stored rows. A recording with
// no sentiment rows yields a zero summary, not an error.
func (s *Session) GetSentimentAnalysis(ctx context.Context, recordingID string) (*types.SentimentSummary, error) {
	if _, err := s.GetRecordingMetadata(ctx, recordingID); err != nil {
		return nil, err
	}

	var timeline []types.SentimentResult
	err := s.read(ctx, "get sentiment", func(q querier) error {
		rows, err := q.QueryContext(ctx, `
			SELECT speaker_id, timestamp, sentiment_score, confidence, text
			FROM sentiment_analysis WHERE recording_id = ? ORDER BY timestamp ASC, id ASC`, recordingID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				r          types.SentimentResult
				confidence sql.NullFloat64
			)
			if err := rows.Scan(&r.SpeakerID, &r.Timestamp, &r.SentimentScore, &confidence, &r.Text); err != nil {
				return err
			}
			if confidence.Valid {
				v := confidence.Float64
				r.Confidence = &v
			}
			timeline = append(timeline, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return types.NewSentimentSummary(timeline, time.Now()), nil
}

// GetDiscussionSummary joins metadata, topics, arguments, agreements and
// gaps. A missing recording surfaces as ErrRecordNotFound.
func (s *Session) GetDiscussionSummary(ctx context.Context, recordingID string) (*DiscussionSummary, error) {
	meta, err := s.GetRecordingMetadata(ctx, recordingID)
	if err != nil {
		return nil, err
	}
	summary := &DiscussionSummary{Metadata: *meta}

	if summary.Topics, err = s.GetTopics(ctx, recordingID); err != nil {
		return nil, err
	}
	if summary.Arguments, err = s.GetArguments(ctx, recordingID, nil); err != nil {
		return nil, err
	}
	if summary.Agreements, err = s.GetAgreements(ctx, recordingID, nil); err != nil {
		return nil, err
	}
	if summary.Gaps, err = s.GetGaps(ctx, recordingID, nil); err != nil {
		return nil, err
	}
	return summary, nil
}
