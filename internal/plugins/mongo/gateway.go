package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"chatrelay/internal/core/domain"
)

// Gateway is the Mongo-backed persistence gateway. Collections mirror the
// upstream schema: users, messages, groups, group_messages.
type Gateway struct {
	users         *mongo.Collection
	messages      *mongo.Collection
	groups        *mongo.Collection
	groupMessages *mongo.Collection
}

func NewGateway(client *mongo.Client, database string) *Gateway {
	db := client.Database(database)
	return &Gateway{
		users:         db.Collection("users"),
		messages:      db.Collection("messages"),
		groups:        db.Collection("groups"),
		groupMessages: db.Collection("group_messages"),
	}
}

type userDoc struct {
	ID             string    `bson:"_id"`
	Username       string    `bson:"username"`
	Name           string    `bson:"name,omitempty"`
	ImageURL       string    `bson:"image_url,omitempty"`
	Email          string    `bson:"email,omitempty"`
	Friends        []string  `bson:"friends,omitempty"`
	FriendRequests []string  `bson:"friend_requests,omitempty"`
	IsOnline       bool      `bson:"is_online"`
	LastSeen       time.Time `bson:"last_seen,omitempty"`
	CreatedAt      time.Time `bson:"created_at,omitempty"`
}

func (d *userDoc) record() *domain.UserRecord {
	return &domain.UserRecord{
		ID:             d.ID,
		Username:       d.Username,
		Name:           d.Name,
		ImageURL:       d.ImageURL,
		Email:          d.Email,
		Friends:        d.Friends,
		FriendRequests: d.FriendRequests,
		IsOnline:       d.IsOnline,
		LastSeen:       d.LastSeen,
		CreatedAt:      d.CreatedAt,
	}
}

type messageDoc struct {
	ID         string     `bson:"_id"`
	SenderID   string     `bson:"sender_id"`
	ReceiverID string     `bson:"receiver_id"`
	Content    string     `bson:"content"`
	FileURL    string     `bson:"file_url,omitempty"`
	IsRead     bool       `bson:"is_read"`
	ReadAt     *time.Time `bson:"read_at,omitempty"`
	CreatedAt  time.Time  `bson:"created_at,omitempty"`
}

type groupDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedBy string    `bson:"created_by"`
	Members   []string  `bson:"members"`
	ImageURL  string    `bson:"image_url,omitempty"`
	CreatedAt time.Time `bson:"created_at,omitempty"`
}

type groupMessageDoc struct {
	ID        string    `bson:"_id"`
	GroupID   string    `bson:"group_id"`
	SenderID  string    `bson:"sender_id"`
	Receivers []string  `bson:"receivers"`
	Message   string    `bson:"message"`
	FileURL   string    `bson:"file_url,omitempty"`
	ReadBy    []string  `bson:"read_by,omitempty"`
	CreatedAt time.Time `bson:"created_at,omitempty"`
}

func (g *Gateway) FindUserByID(ctx context.Context, identity string) (*domain.UserRecord, error) {
	if identity == "" {
		return nil, domain.ErrInvalidIdentity
	}
	var doc userDoc
	err := g.users.FindOne(ctx, bson.M{"_id": identity}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.record(), nil
}

func (g *Gateway) UpdateUserPresence(ctx context.Context, identity string, online bool, lastSeen time.Time) error {
	if identity == "" {
		return domain.ErrInvalidIdentity
	}
	res, err := g.users.UpdateOne(ctx,
		bson.M{"_id": identity},
		bson.M{"$set": bson.M{"is_online": online, "last_seen": lastSeen}},
	)
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (g *Gateway) ListFriends(ctx context.Context, identity string) ([]string, error) {
	user, err := g.FindUserByID(ctx, identity)
	if err != nil {
		return nil, err
	}
	return user.Friends, nil
}

func (g *Gateway) FindMessageByID(ctx context.Context, id string) (*domain.MessageRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidMessageID
	}
	var doc messageDoc
	err := g.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("find message: %w", err)
	}
	msg := &domain.MessageRecord{
		ID:         doc.ID,
		SenderID:   doc.SenderID,
		ReceiverID: doc.ReceiverID,
		Content:    doc.Content,
		FileURL:    doc.FileURL,
		IsRead:     doc.IsRead,
		ReadAt:     doc.ReadAt,
		CreatedAt:  doc.CreatedAt,
	}
	// Join the sender/receiver views the way the upstream populate() did.
	// A missing user leaves the view empty rather than failing delivery.
	if sender, err := g.FindUserByID(ctx, doc.SenderID); err == nil {
		msg.Sender = sender.View()
	}
	if receiver, err := g.FindUserByID(ctx, doc.ReceiverID); err == nil {
		msg.Receiver = receiver.View()
	}
	return msg, nil
}

func (g *Gateway) MarkMessageRead(ctx context.Context, id string, readAt time.Time) error {
	if id == "" {
		return domain.ErrInvalidMessageID
	}
	res, err := g.messages.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"is_read": true, "read_at": readAt}},
	)
	if err != nil {
		return fmt.Errorf("mark message read: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (g *Gateway) FindGroupByID(ctx context.Context, id string) (*domain.GroupRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidGroupID
	}
	var doc groupDoc
	err := g.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrGroupNotFound
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &domain.GroupRecord{
		ID:        doc.ID,
		Name:      doc.Name,
		CreatedBy: doc.CreatedBy,
		Members:   doc.Members,
		ImageURL:  doc.ImageURL,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (g *Gateway) FindGroupMessageByID(ctx context.Context, id string) (*domain.GroupMessageRecord, error) {
	if id == "" {
		return nil, domain.ErrInvalidMessageID
	}
	var doc groupMessageDoc
	err := g.groupMessages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrGroupMessageNotFound
		}
		return nil, fmt.Errorf("find group message: %w", err)
	}
	return &domain.GroupMessageRecord{
		ID:        doc.ID,
		GroupID:   doc.GroupID,
		SenderID:  doc.SenderID,
		Receivers: doc.Receivers,
		Message:   doc.Message,
		FileURL:   doc.FileURL,
		ReadBy:    doc.ReadBy,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (g *Gateway) MarkGroupMessageRead(ctx context.Context, id string, identity string) error {
	if id == "" {
		return domain.ErrInvalidMessageID
	}
	res, err := g.groupMessages.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"read_by": identity}},
	)
	if err != nil {
		return fmt.Errorf("mark group message read: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrGroupMessageNotFound
	}
	return nil
}
