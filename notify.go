package magstand

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one entry in the local in-app inbox. Entries are created
// when a push-style message arrives and live only on this device.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
	Read      bool   `json:"read"`
}

// AddNotification stores a new unread notification and returns it. Empty
// titles fall back to a generic label, matching what the push payloads allow.
func (s *Store) AddNotification(title, body string) (Notification, error) {
	if title == "" {
		title = "Notification"
	}
	n := Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	_, err := s.db.Exec(`INSERT INTO notifications (id, title, body, created_at, read) VALUES (?, ?, ?, ?, 0)`,
		n.ID, n.Title, n.Body, n.CreatedAt)
	if err != nil {
		return Notification{}, err
	}
	return n, nil
}

// Notifications returns the inbox, newest first.
func (s *Store) Notifications() ([]Notification, error) {
	rows, err := s.db.Query(`SELECT id, title, body, created_at, read FROM notifications ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Notification
	for rows.Next() {
		var n Notification
		var read int
		if err := rows.Scan(&n.ID, &n.Title, &n.Body, &n.CreatedAt, &read); err != nil {
			return nil, err
		}
		n.Read = read == 1
		list = append(list, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkNotificationRead flags a single notification as read.
// Returns ErrNotFound for unknown ids.
func (s *Store) MarkNotificationRead(id string) error {
	res, err := s.db.Exec(`UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadNotifications returns the number of unread inbox entries, used for
// the badge count.
func (s *Store) UnreadNotifications() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE read = 0`).Scan(&n)
	return n, err
}
