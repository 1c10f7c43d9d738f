package store

import (
	"context"
	"fmt"
	"strings"
)

// ChatRow mirrors the chats table row shape used by retrieval (spec §3
// "Chat Record").
type ChatRow struct {
	ID        int64
	Timestamp string
	Sender    string
	Receiver  string
	Message   string
}

const maxRenderedRows = 30 // spec §4.5 "at most 30 rendered rows per channel per turn"

func clampLimit(limit int) int {
	if limit < 10 {
		return 10
	}
	if limit > maxRenderedRows {
		return maxRenderedRows
	}
	return limit
}

func clampWindow(window int) int {
	if window < 1 {
		return 1
	}
	return window
}

// CurrentPairHistory implements retrieval family 1: the last `limit` rows
// where {sender,receiver} = {master,contact}, returned oldest-first.
func (s *Store) CurrentPairHistory(ctx context.Context, master, contact string, limit int) ([]ChatRow, error) {
	limit = clampLimit(limit)
	query := fmt.Sprintf(`
		SELECT id, timestamp, sender, receiver, message
		FROM chats
		WHERE (sender = %s AND receiver = %s) OR (sender = %s AND receiver = %s)
		ORDER BY id DESC
		LIMIT %s
	`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5))

	rows, err := s.queryRows(ctx, "current_pair_history", query, master, contact, contact, master, limit)
	if err != nil {
		return nil, err
	}
	return reverseOldestFirst(rows), nil
}

// CrossContactHistory implements retrieval family 2: the last `limit` rows
// where exactly one endpoint is master and neither endpoint contains
// "Agent", excluding rows with contact as the other endpoint.
func (s *Store) CrossContactHistory(ctx context.Context, master, contact string, limit int) ([]ChatRow, error) {
	limit = clampLimit(limit)
	query := fmt.Sprintf(`
		SELECT id, timestamp, sender, receiver, message
		FROM chats
		WHERE ((sender = %s AND receiver != %s) OR (sender != %s AND receiver = %s))
			AND (sender NOT %s '%%Agent%%' AND receiver NOT %s '%%Agent%%')
		ORDER BY id DESC
		LIMIT %s
	`, s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.likeOp(), s.likeOp(), s.placeholder(5))

	rows, err := s.queryRows(ctx, "cross_contact_history", query, master, contact, contact, master, limit)
	if err != nil {
		return nil, err
	}
	return reverseOldestFirst(rows), nil
}

// windowedKeywordQuery is shared by the current-pair and cross-contact
// keyword-windowed retrieval families (spec §4.3 families 3 & 4): find rows
// matching %keyword%, then widen each match to a ±window band of
// surrounding rows (by id, within the same relationship-scoped context),
// deduplicated and capped at limit, ordered by the anchor match id.
func (s *Store) windowedKeywordQuery(ctx context.Context, instruction, contextPredicate string, contextArgs []interface{}, keyword string, window, limit int) ([]ChatRow, error) {
	window = clampWindow(window)
	limit = clampLimit(limit)

	query := fmt.Sprintf(`
		WITH relevant_messages AS (
			SELECT id, timestamp, sender, receiver, message
			FROM chats
			WHERE message %s %s
		),
		context AS (
			SELECT id, timestamp, sender, receiver, message
			FROM chats
			WHERE %s
		),
		relevant_ids AS (
			SELECT id,
				LAG(id, %s, id) OVER (ORDER BY id) AS prev_id,
				LEAD(id, %s, id) OVER (ORDER BY id) AS next_id
			FROM context
		),
		relevant_context_ids AS (
			SELECT DISTINCT r.id AS message_id,
				c.id AS context_id, c.timestamp AS context_timestamp,
				c.sender AS context_sender, c.receiver AS context_receiver, c.message AS context_message
			FROM relevant_messages r
			JOIN relevant_ids ri ON r.id = ri.id
			JOIN context c ON c.id BETWEEN ri.prev_id AND ri.next_id
		)
		SELECT context_id AS id, context_timestamp AS timestamp, context_sender AS sender, context_receiver AS receiver, context_message AS message
		FROM relevant_context_ids
		ORDER BY message_id
		LIMIT %s
	`, s.likeOp(), s.placeholder(1), contextPredicate, s.placeholder(len(contextArgs)+2), s.placeholder(len(contextArgs)+3), s.placeholder(len(contextArgs)+4))

	args := make([]interface{}, 0, len(contextArgs)+4)
	args = append(args, "%"+keyword+"%")
	args = append(args, contextArgs...)
	args = append(args, window, window, limit)

	return s.queryRows(ctx, instruction, query, args...)
}

// KeywordContextCurrentPair implements retrieval family 3.
func (s *Store) KeywordContextCurrentPair(ctx context.Context, master, contact, keyword string, window, limit int) ([]ChatRow, error) {
	predicate := fmt.Sprintf(
		"((sender = %s AND receiver = %s) OR (sender = %s AND receiver = %s)) AND (sender NOT %s '%%Agent%%' AND receiver NOT %s '%%Agent%%')",
		s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.likeOp(), s.likeOp())
	return s.windowedKeywordQuery(ctx, "keyword_context_current_pair", predicate,
		[]interface{}{master, contact, contact, master}, keyword, window, limit)
}

// KeywordContextCrossContact implements retrieval family 4.
func (s *Store) KeywordContextCrossContact(ctx context.Context, master, receiver, keyword string, window, limit int) ([]ChatRow, error) {
	predicate := fmt.Sprintf(
		"((sender = %s AND receiver != %s) OR (sender != %s AND receiver = %s)) AND (sender NOT %s '%%Agent%%' AND receiver NOT %s '%%Agent%%')",
		s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.likeOp(), s.likeOp())
	return s.windowedKeywordQuery(ctx, "keyword_context_cross_contact", predicate,
		[]interface{}{master, receiver, receiver, master}, keyword, window, limit)
}

// FriendsOfMaster implements retrieval family 5: bidirectional friendships.
func (s *Store) FriendsOfMaster(ctx context.Context, master string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT users.name
		FROM friendships
		JOIN users ON friendships.friend_id = users.id
		WHERE friendships.user_id = (SELECT id FROM users WHERE name = %s)
	`, s.placeholder(1))

	var names []string
	err := s.execWithReconnect(ctx, "friends_of_master", func() error {
		rows, err := s.db.QueryContext(ctx, query, master)
		if err != nil {
			return err
		}
		defer rows.Close()
		names = nil
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	s.logSQL("Executing SQL", query, []interface{}{master}, len(names))
	return names, nil
}

// InsertChat appends one row to the chats table. sender/receiver carry the
// "'s Agent" suffix when the endpoint is an agent (spec §4.5).
func (s *Store) InsertChat(ctx context.Context, sender, receiver, message, communicationHistory string) error {
	query := fmt.Sprintf(
		"INSERT INTO chats (sender, receiver, message, communication_history, timestamp) VALUES (%s, %s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5))

	return s.execWithReconnect(ctx, "insert_chat", func() error {
		_, err := s.db.ExecContext(ctx, query, sender, receiver, message, communicationHistory, nowTimestamp())
		return err
	})
}

// InsertFeedback writes one feedback row (written by the out-of-scope
// external UI; exposed here only so a full schema-compatible store can be
// stood up from one package).
func (s *Store) InsertFeedback(ctx context.Context, sender, receiver, conclusion, communicationHistory, feedback string) error {
	query := fmt.Sprintf(
		"INSERT INTO feedback (sender, receiver, conclusion, communication_history, feedback, timestamp) VALUES (%s, %s, %s, %s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3), s.placeholder(4), s.placeholder(5), s.placeholder(6))

	return s.execWithReconnect(ctx, "insert_feedback", func() error {
		_, err := s.db.ExecContext(ctx, query, sender, receiver, conclusion, communicationHistory, feedback, nowTimestamp())
		return err
	})
}

func (s *Store) queryRows(ctx context.Context, instruction, query string, args ...interface{}) ([]ChatRow, error) {
	var rows []ChatRow
	err := s.execWithReconnect(ctx, instruction, func() error {
		sqlRows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer sqlRows.Close()
		rows = nil
		for sqlRows.Next() {
			var r ChatRow
			if err := sqlRows.Scan(&r.ID, &r.Timestamp, &r.Sender, &r.Receiver, &r.Message); err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return sqlRows.Err()
	})
	if err != nil {
		return nil, err
	}
	s.logSQL(instruction, query, args, len(rows))
	return rows, nil
}

// reverseOldestFirst reverses a descending-by-id slice to oldest-first, the
// rendering order spec §4.3 family 1/2 require ("ordered by descending id,
// then rendered oldest-first").
func reverseOldestFirst(rows []ChatRow) []ChatRow {
	out := make([]ChatRow, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r
	}
	return out
}

// Render concatenates rows into the "from X to Y: message" lines used
// inside prompt chat-history sections.
func Render(rows []ChatRow) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("from %s to %s: %s", r.Sender, r.Receiver, r.Message))
	}
	return strings.Join(lines, "\n")
}
