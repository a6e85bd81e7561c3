package domain

import "time"

// UserView is the denormalized slice of a user attached to routed messages,
// mirroring what clients render next to a chat entry.
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	ImageURL string `json:"image_url,omitempty"`
	Email    string `json:"email,omitempty"`
}

// UserRecord is the durable user document owned by the persistence gateway.
// ID is the stable external identity key; the presence fields are best-effort
// mirrors of the in-memory registry.
type UserRecord struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Name           string    `json:"name,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	Email          string    `json:"email,omitempty"`
	Friends        []string  `json:"friends,omitempty"`
	FriendRequests []string  `json:"friend_requests,omitempty"`
	IsOnline       bool      `json:"is_online"`
	LastSeen       time.Time `json:"last_seen"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *UserRecord) View() UserView {
	return UserView{
		ID:       u.ID,
		Username: u.Username,
		ImageURL: u.ImageURL,
		Email:    u.Email,
	}
}

// MessageRecord is a direct message with the sender/receiver views already
// joined in, so the router can forward it without further lookups.
type MessageRecord struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Sender     UserView   `json:"sender"`
	Receiver   UserView   `json:"receiver"`
	Content    string     `json:"content"`
	FileURL    string     `json:"file_url,omitempty"`
	IsRead     bool       `json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// GroupRecord names a group and its membership. Membership is resolved at
// event time, never cached by the router.
type GroupRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	Members   []string  `json:"members"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupMessageRecord is a message addressed to a group; ReadBy accumulates
// the identities that have marked it read.
type GroupMessageRecord struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	SenderID  string    `json:"sender_id"`
	Receivers []string  `json:"receivers"`
	Message   string    `json:"message"`
	FileURL   string    `json:"file_url,omitempty"`
	ReadBy    []string  `json:"read_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReadByUser reports whether identity already marked this group message read.
func (g *GroupMessageRecord) ReadByUser(identity string) bool {
	for _, id := range g.ReadBy {
		if id == identity {
			return true
		}
	}
	return false
}
