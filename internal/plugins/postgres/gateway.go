package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatrelay/internal/core/domain"
)

// Gateway is the Postgres-backed persistence gateway. Schema:
//
//	users(id, username, name, image_url, email, is_online, last_seen, created_at)
//	friends(user_id, friend_id)
//	messages(id, sender_id, receiver_id, content, file_url, is_read, read_at, created_at)
//	groups(id, name, created_by, image_url, created_at)
//	group_members(group_id, user_id)
//	group_messages(id, group_id, sender_id, message, file_url, created_at)
//	group_message_reads(message_id, user_id)
type Gateway struct {
	db *sql.DB
}

func NewGateway(db *sql.DB) *Gateway {
	return &Gateway{db: db}
}

func (g *Gateway) FindUserByID(ctx context.Context, identity string) (*domain.UserRecord, error) {
	if identity == "" {
		return nil, domain.ErrInvalidIdentity
	}
	user := &domain.UserRecord{ID: identity}
	var name, imageURL, email sql.NullString
	var lastSeen sql.NullTime
	err := g.db.QueryRowContext(ctx, `
		SELECT username, name, image_url, email, is_online, last_seen, created_at
		FROM users WHERE id = $1
	`, identity).Scan(&user.Username, &name, &imageURL, &email, &user.IsOnline, &lastSeen, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Name = name.String
	user.ImageURL = imageURL.String
	user.Email = email.String
	if lastSeen.Valid {
		user.LastSeen = lastSeen.Time
	}
	friends, err := g.ListFriends(ctx, identity)
	if err != nil {
		return nil, err
	}
	user.Friends = friends
	return user, nil
}

func (g *Gateway) UpdateUserPresence(ctx context.Context, identity string, online bool, lastSeen time.Time) error {
	if identity == "" {
		return domain.ErrInvalidIdentity
	}
	res, err := g.db.ExecContext(ctx, `
		UPDATE users SET is_online = $2, last_seen = $3 WHERE id = $1
	`, identity, online, lastSeen)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (g *Gateway) ListFriends(ctx context.Context, identity string) ([]string, error) {
	if identity == "" {
		return nil, domain.ErrInvalidIdentity
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT friend_id FROM friends WHERE user_id = $1
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()
	var friends []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		friends = append(friends, id)
	}
	return friends, rows.Err()
}

func (g *Gateway) FindMessageByID(ctx context.Context, id string) (*domain.MessageRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidMessageID
	}
	msg := &domain.MessageRecord{ID: id}
	var fileURL sql.NullString
	var readAt sql.NullTime
	var senderImg, senderEmail, receiverImg, receiverEmail sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT m.sender_id, m.receiver_id, m.content, m.file_url, m.is_read, m.read_at, m.created_at,
		       s.username, s.image_url, s.email,
		       r.username, r.image_url, r.email
		FROM messages m
		JOIN users s ON s.id = m.sender_id
		JOIN users r ON r.id = m.receiver_id
		WHERE m.id = $1
	`, id).Scan(
		&msg.SenderID, &msg.ReceiverID, &msg.Content, &fileURL, &msg.IsRead, &readAt, &msg.CreatedAt,
		&msg.Sender.Username, &senderImg, &senderEmail,
		&msg.Receiver.Username, &receiverImg, &receiverEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	msg.FileURL = fileURL.String
	if readAt.Valid {
		t := readAt.Time
		msg.ReadAt = &t
	}
	msg.Sender.ID = msg.SenderID
	msg.Sender.ImageURL = senderImg.String
	msg.Sender.Email = senderEmail.String
	msg.Receiver.ID = msg.ReceiverID
	msg.Receiver.ImageURL = receiverImg.String
	msg.Receiver.Email = receiverEmail.String
	return msg, nil
}

func (g *Gateway) MarkMessageRead(ctx context.Context, id string, readAt time.Time) error {
	if id == "" {
		return domain.ErrInvalidMessageID
	}
	res, err := g.db.ExecContext(ctx, `
		UPDATE messages SET is_read = TRUE, read_at = $2 WHERE id = $1
	`, id, readAt)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (g *Gateway) FindGroupByID(ctx context.Context, id string) (*domain.GroupRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidGroupID
	}
	grp := &domain.GroupRecord{ID: id}
	var imageURL sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT name, created_by, image_url, created_at FROM groups WHERE id = $1
	`, id).Scan(&grp.Name, &grp.CreatedBy, &imageURL, &grp.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	grp.ImageURL = imageURL.String
	rows, err := g.db.QueryContext(ctx, `
		SELECT user_id FROM group_members WHERE group_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		grp.Members = append(grp.Members, member)
	}
	return grp, rows.Err()
}

func (g *Gateway) FindGroupMessageByID(ctx context.Context, id string) (*domain.GroupMessageRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidMessageID
	}
	gm := &domain.GroupMessageRecord{ID: id}
	var fileURL sql.NullString
	err := g.db.QueryRowContext(ctx, `
		SELECT group_id, sender_id, message, file_url, created_at
		FROM group_messages WHERE id = $1
	`, id).Scan(&gm.GroupID, &gm.SenderID, &gm.Message, &fileURL, &gm.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGroupMessageNotFound
		}
		return nil, fmt.Errorf("find group message: %w", err)
	}
	gm.FileURL = fileURL.String
	rows, err := g.db.QueryContext(ctx, `
		SELECT user_id FROM group_message_reads WHERE message_id = $1
	`, id)
	if err != nil {
		return nil, fmt.Errorf("group message reads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var reader string
		if err := rows.Scan(&reader); err != nil {
			return nil, err
		}
		gm.ReadBy = append(gm.ReadBy, reader)
	}
	return gm, rows.Err()
}

func (g *Gateway) MarkGroupMessageRead(ctx context.Context, id string, identity string) error {
	if id == "" {
		return domain.ErrInvalidMessageID
	}
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO group_message_reads (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, id, identity)
	if err != nil {
		return fmt.Errorf("mark group message read: %w", err)
	}
	return nil
}
