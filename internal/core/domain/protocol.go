package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Inbound event tags.
const (
	EventPresenceAnnounce  = "presenceAnnounce"
	EventSendFriendRequest = "sendFriendRequest"
	EventAcceptRequest     = "acceptRequest"
	EventSendMessage       = "sendMessage"
	EventCreateGroup       = "createGroup"
	EventMarkAsRead        = "markAsRead"
	EventMarkGroupRead     = "markGroupRead"
)

// Outbound event tags.
const (
	EventUserStatusUpdate   = "userStatusUpdate"
	EventRequestUpdate      = "requestUpdate"
	EventReceiveMessage     = "receiveMessage"
	EventUnreadCountChanged = "unreadCountChanged"
	EventGroupCreated       = "groupCreated"
	EventMessageRead        = "messageRead"
	EventGroupMessageRead   = "groupMessageRead"
)

var ErrMalformedEvent = errors.New("malformed event")

// Envelope is the wire frame for both directions: a tag plus a payload whose
// shape is fixed per tag. Payloads are validated here, at the transport
// boundary, before the router sees them.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event tag", ErrMalformedEvent)
	}
	return &env, nil
}

// EncodeEvent frames an outbound payload under its tag.
func EncodeEvent(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// PresenceAnnounce binds a connection to an identity. Must be the first
// event on every connection.
type PresenceAnnounce struct {
	Identity string `json:"identity"`
}

// FriendRequestEvent targets the receiving side of a pending request.
type FriendRequestEvent struct {
	ReceiverID string `json:"receiverId"`
}

// AcceptRequestEvent carries both parties of an accepted request.
type AcceptRequestEvent struct {
	User   string `json:"user"`
	Friend string `json:"friend"`
}

// SendMessageEvent references an already-persisted direct message.
type SendMessageEvent struct {
	MessageID string `json:"messageId"`
}

// CreateGroupEvent references a persisted group; Payload is echoed to
// members untouched.
type CreateGroupEvent struct {
	GroupID string          `json:"groupId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarkAsReadEvent requests the read-mark transition for a direct message.
type MarkAsReadEvent struct {
	MessageID string `json:"messageId"`
}

// MarkGroupReadEvent requests a read-by append for a group message.
type MarkGroupReadEvent struct {
	MessageID string `json:"messageId"`
}

func (e *Envelope) DecodePresenceAnnounce() (PresenceAnnounce, error) {
	var p PresenceAnnounce
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.Identity == "" {
		return p, fmt.Errorf("%w: presenceAnnounce requires identity", ErrMalformedEvent)
	}
	return p, nil
}

func (e *Envelope) DecodeFriendRequest() (FriendRequestEvent, error) {
	var p FriendRequestEvent
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.ReceiverID == "" {
		return p, fmt.Errorf("%w: sendFriendRequest requires receiverId", ErrMalformedEvent)
	}
	return p, nil
}

func (e *Envelope) DecodeAcceptRequest() (AcceptRequestEvent, error) {
	var p AcceptRequestEvent
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.User == "" || p.Friend == "" {
		return p, fmt.Errorf("%w: acceptRequest requires user and friend", ErrMalformedEvent)
	}
	return p, nil
}

func (e *Envelope) DecodeSendMessage() (SendMessageEvent, error) {
	var p SendMessageEvent
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.MessageID == "" {
		return p, fmt.Errorf("%w: sendMessage requires messageId", ErrMalformedEvent)
	}
	return p, nil
}

func (e *Envelope) DecodeCreateGroup() (CreateGroupEvent, error) {
	var p CreateGroupEvent
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.GroupID == "" {
		return p, fmt.Errorf("%w: createGroup requires groupId", ErrMalformedEvent)
	}
	return p, nil
}

func (e *Envelope) DecodeMarkAsRead() (MarkAsReadEvent, error) {
	var p MarkAsReadEvent
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.MessageID == "" {
		return p, fmt.Errorf("%w: markAsRead requires messageId", ErrMalformedEvent)
	}
	return p, nil
}

func (e *Envelope) DecodeMarkGroupRead() (MarkGroupReadEvent, error) {
	var p MarkGroupReadEvent
	if err := decodeData(e.Data, &p); err != nil {
		return p, err
	}
	if p.MessageID == "" {
		return p, fmt.Errorf("%w: markGroupRead requires messageId", ErrMalformedEvent)
	}
	return p, nil
}

func decodeData(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// UnknownCount marks an unreadCountChanged poke whose counter lookup failed;
// clients treat it as "refetch from the API".
const UnknownCount int64 = -1

// StatusUpdatePayload announces a presence transition.
type StatusUpdatePayload struct {
	Identity string    `json:"identity"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// UnreadCountPayload carries the receiver's new unread total.
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

// GroupCreatedPayload delivers a new group to its online members.
type GroupCreatedPayload struct {
	Group   *GroupRecord    `json:"group"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageReadPayload notifies the sender that their message was read.
type MessageReadPayload struct {
	MessageID  string    `json:"messageId"`
	ReceiverID string    `json:"receiverId"`
	SenderID   string    `json:"senderId"`
	ReadAt     time.Time `json:"readAt"`
}

// GroupMessageReadPayload notifies the sender of a group-message read.
type GroupMessageReadPayload struct {
	MessageID string    `json:"messageId"`
	GroupID   string    `json:"groupId"`
	ReaderID  string    `json:"readerId"`
	ReadAt    time.Time `json:"readAt"`
}
