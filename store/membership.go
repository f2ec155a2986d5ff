package store

import "context"

// AddMembership records that the user belongs to the room. Inserting an
// existing pair is a no-op, so joining twice never duplicates an entry.
func (s *Store) AddMembership(ctx context.Context, userID, room string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO room_members (user_id, room) VALUES (?, ?)`,
		userID, room)
	if err != nil {
		return &StorageError{Op: "add membership", Err: err}
	}
	return nil
}

// RoomsForUser returns the rooms the user has ever joined, in join order.
func (s *Store) RoomsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT room FROM room_members WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, &StorageError{Op: "list rooms", Err: err}
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, &StorageError{Op: "list rooms", Err: err}
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list rooms", Err: err}
	}
	return rooms, nil
}
