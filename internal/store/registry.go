package store

import "context"

// RecipientRegistry tracks chat ids that opted in to receive notifications.
// Insertion order is preserved and drives send order.
type RecipientRegistry interface {
	ListRecipients(ctx context.Context) ([]int64, error)
	Register(ctx context.Context, chatID int64) (bool, error)
}

func (s *SQLite) ListRecipients(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM recipients ORDER BY id`)
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

// Register records a chat id, deduplicating on insert. Returns true when the
// id was not seen before.
func (s *SQLite) Register(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO recipients (chat_id) VALUES (?)`, chatID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
