package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

// bindFunc translates ?-style placeholders into the driver's dialect.
type bindFunc func(query string) string

func bindQuestion(query string) string { return query }

func bindDollar(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlRelationshipStore keeps one JSON-encoded state row per user. The
// updated_at column is denormalized for the decay sweep's idle query.
type sqlRelationshipStore struct {
	db   *sql.DB
	bind bindFunc
}

func (s *sqlRelationshipStore) Get(ctx context.Context, userID string) (*models.RelationshipState, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		s.bind(`SELECT state FROM relationship_states WHERE user_id = ?`), userID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get relationship state: %w", err)
	}
	var state models.RelationshipState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("unmarshal relationship state: %w", err)
	}
	return &state, nil
}

func (s *sqlRelationshipStore) Put(ctx context.Context, state *models.RelationshipState) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("state is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal relationship state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.bind(`INSERT INTO relationship_states (user_id, state, updated_at) VALUES (?,?,?)
		 ON CONFLICT (user_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`),
		state.UserID, raw, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put relationship state: %w", err)
	}
	return nil
}

func (s *sqlRelationshipStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM relationship_states ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list relationship users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list relationship users: %w", err)
	}
	return ids, nil
}

type sqlMomentumStore struct {
	db   *sql.DB
	bind bindFunc
}

func (s *sqlMomentumStore) Get(ctx context.Context, userID string) (*models.EmotionalMomentum, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		s.bind(`SELECT momentum FROM emotional_momentum WHERE user_id = ?`), userID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get momentum: %w", err)
	}
	var m models.EmotionalMomentum
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal momentum: %w", err)
	}
	return &m, nil
}

func (s *sqlMomentumStore) Put(ctx context.Context, momentum *models.EmotionalMomentum) error {
	if momentum == nil || momentum.UserID == "" {
		return fmt.Errorf("momentum is required")
	}
	raw, err := json.Marshal(momentum)
	if err != nil {
		return fmt.Errorf("marshal momentum: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.bind(`INSERT INTO emotional_momentum (user_id, momentum, updated_at) VALUES (?,?,?)
		 ON CONFLICT (user_id) DO UPDATE SET momentum = excluded.momentum, updated_at = excluded.updated_at`),
		momentum.UserID, raw, momentum.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put momentum: %w", err)
	}
	return nil
}

type sqlPatternStore struct {
	db   *sql.DB
	bind bindFunc
}

func (s *sqlPatternStore) Get(ctx context.Context, userID string) (*models.BehaviorPattern, error) {
	if userID == "" {
		return nil, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		s.bind(`SELECT pattern FROM behavior_patterns WHERE user_id = ?`), userID)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	var p models.BehaviorPattern
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pattern: %w", err)
	}
	return &p, nil
}

func (s *sqlPatternStore) Put(ctx context.Context, pattern *models.BehaviorPattern) error {
	if pattern == nil || pattern.UserID == "" {
		return fmt.Errorf("pattern is required")
	}
	raw, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.bind(`INSERT INTO behavior_patterns (user_id, pattern, updated_at) VALUES (?,?,?)
		 ON CONFLICT (user_id) DO UPDATE SET pattern = excluded.pattern, updated_at = excluded.updated_at`),
		pattern.UserID, raw, pattern.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put pattern: %w", err)
	}
	return nil
}

type sqlMilestoneStore struct {
	db   *sql.DB
	bind bindFunc
}

func (s *sqlMilestoneStore) Append(ctx context.Context, event *models.MilestoneEvent) error {
	if event == nil || event.ID == "" || event.UserID == "" {
		return fmt.Errorf("event is required")
	}
	_, err := s.db.ExecContext(ctx,
		s.bind(`INSERT INTO milestone_events (id, user_id, milestone, occurred_at) VALUES (?,?,?,?)`),
		event.ID, event.UserID, string(event.Milestone), event.At)
	if err != nil {
		return fmt.Errorf("append milestone event: %w", err)
	}
	return nil
}

func (s *sqlMilestoneStore) List(ctx context.Context, userID string) ([]*models.MilestoneEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT id, user_id, milestone, occurred_at FROM milestone_events
		 WHERE user_id = ? ORDER BY occurred_at`), userID)
	if err != nil {
		return nil, fmt.Errorf("list milestone events: %w", err)
	}
	defer rows.Close()

	var events []*models.MilestoneEvent
	for rows.Next() {
		var e models.MilestoneEvent
		var milestone string
		if err := rows.Scan(&e.ID, &e.UserID, &milestone, &e.At); err != nil {
			return nil, fmt.Errorf("scan milestone event: %w", err)
		}
		e.Milestone = models.Milestone(milestone)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list milestone events: %w", err)
	}
	return events, nil
}

type sqlOpenLoopStore struct {
	db   *sql.DB
	bind bindFunc
}

func (s *sqlOpenLoopStore) Append(ctx context.Context, item *models.OpenLoopItem) error {
	if item == nil || item.ID == "" || item.UserID == "" {
		return fmt.Errorf("item is required")
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal open loop: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		s.bind(`INSERT INTO open_loops (id, user_id, item, detected_at, resolved_at) VALUES (?,?,?,?,?)`),
		item.ID, item.UserID, raw, item.DetectedAt, item.ResolvedAt)
	if err != nil {
		return fmt.Errorf("append open loop: %w", err)
	}
	return nil
}

func (s *sqlOpenLoopStore) ListOpen(ctx context.Context, userID string) ([]*models.OpenLoopItem, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT item FROM open_loops
		 WHERE user_id = ? AND resolved_at IS NULL ORDER BY detected_at`), userID)
	if err != nil {
		return nil, fmt.Errorf("list open loops: %w", err)
	}
	defer rows.Close()

	var items []*models.OpenLoopItem
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan open loop: %w", err)
		}
		var item models.OpenLoopItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("unmarshal open loop: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list open loops: %w", err)
	}
	return items, nil
}

func (s *sqlOpenLoopStore) Resolve(ctx context.Context, id string, at time.Time) error {
	if id == "" {
		return ErrNotFound
	}
	// The JSON blob carries resolved_at too, so rewrite it alongside the
	// column to keep the row self-describing.
	row := s.db.QueryRowContext(ctx,
		s.bind(`SELECT item FROM open_loops WHERE id = ?`), id)
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("get open loop: %w", err)
	}
	var item models.OpenLoopItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return fmt.Errorf("unmarshal open loop: %w", err)
	}
	t := at
	item.ResolvedAt = &t
	updated, err := json.Marshal(&item)
	if err != nil {
		return fmt.Errorf("marshal open loop: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		s.bind(`UPDATE open_loops SET item = ?, resolved_at = ? WHERE id = ?`),
		updated, at, id)
	if err != nil {
		return fmt.Errorf("resolve open loop: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve open loop rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlOpenLoopStore) ExpireBefore(ctx context.Context, cutoff, at time.Time) (int, error) {
	// The column is authoritative for open/closed queries; the JSON blob of
	// an expired row keeps its original resolved_at of null, which ListOpen
	// never serves because it filters on the column.
	res, err := s.db.ExecContext(ctx,
		s.bind(`UPDATE open_loops SET resolved_at = ? WHERE resolved_at IS NULL AND detected_at < ?`),
		at, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire open loops: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire open loops rows affected: %w", err)
	}
	return int(rows), nil
}

func newSQLStores(db *sql.DB, bind bindFunc) StoreSet {
	return StoreSet{
		Relationships: &sqlRelationshipStore{db: db, bind: bind},
		Momentum:      &sqlMomentumStore{db: db, bind: bind},
		Patterns:      &sqlPatternStore{db: db, bind: bind},
		Milestones:    &sqlMilestoneStore{db: db, bind: bind},
		OpenLoops:     &sqlOpenLoopStore{db: db, bind: bind},
		closer:        db.Close,
	}
}
