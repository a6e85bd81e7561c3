package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chatrelay/internal/core/domain"
)

// fakeClient records every frame routed to it.
type fakeClient struct {
	id       string
	identity string

	mu     sync.Mutex
	frames [][]byte
}

func newFakeClient(id, identity string) *fakeClient {
	return &fakeClient{id: id, identity: identity}
}

func (c *fakeClient) ID() string       { return c.id }
func (c *fakeClient) Identity() string { return c.identity }
func (c *fakeClient) Close()           {}

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

// events returns the ordered event tags received so far.
func (c *fakeClient) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, f := range c.frames {
		var env domain.Envelope
		if err := json.Unmarshal(f, &env); err == nil {
			out = append(out, env.Event)
		}
	}
	return out
}

// payload unmarshals the data of the i-th received frame.
func (c *fakeClient) payload(i int, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var env domain.Envelope
	if err := json.Unmarshal(c.frames[i], &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}

func (c *fakeClient) count(event string) int {
	n := 0
	for _, e := range c.events() {
		if e == event {
			n++
		}
	}
	return n
}

// fakeGateway is an in-memory persistence gateway.
type fakeGateway struct {
	mu            sync.Mutex
	users         map[string]*domain.UserRecord
	messages      map[string]*domain.MessageRecord
	groups        map[string]*domain.GroupRecord
	groupMessages map[string]*domain.GroupMessageRecord

	presenceErr   error
	friendsErr    error
	markReadErr   error
	presenceCalls []string
	markReadCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		users:         make(map[string]*domain.UserRecord),
		messages:      make(map[string]*domain.MessageRecord),
		groups:        make(map[string]*domain.GroupRecord),
		groupMessages: make(map[string]*domain.GroupMessageRecord),
	}
}

func (g *fakeGateway) FindUserByID(_ context.Context, identity string) (*domain.UserRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[identity]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (g *fakeGateway) UpdateUserPresence(_ context.Context, identity string, online bool, lastSeen time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.presenceErr != nil {
		return g.presenceErr
	}
	g.presenceCalls = append(g.presenceCalls, identity)
	if u, ok := g.users[identity]; ok {
		u.IsOnline = online
		u.LastSeen = lastSeen
	}
	return nil
}

func (g *fakeGateway) ListFriends(_ context.Context, identity string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.friendsErr != nil {
		return nil, g.friendsErr
	}
	u, ok := g.users[identity]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Friends, nil
}

func (g *fakeGateway) FindMessageByID(_ context.Context, id string) (*domain.MessageRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	cp := *m
	return &cp, nil
}

func (g *fakeGateway) MarkMessageRead(_ context.Context, id string, readAt time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.markReadErr != nil {
		return g.markReadErr
	}
	m, ok := g.messages[id]
	if !ok {
		return domain.ErrMessageNotFound
	}
	g.markReadCalls++
	m.IsRead = true
	m.ReadAt = &readAt
	return nil
}

func (g *fakeGateway) FindGroupByID(_ context.Context, id string) (*domain.GroupRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	grp, ok := g.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	return grp, nil
}

func (g *fakeGateway) FindGroupMessageByID(_ context.Context, id string) (*domain.GroupMessageRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gm, ok := g.groupMessages[id]
	if !ok {
		return nil, domain.ErrGroupMessageNotFound
	}
	cp := *gm
	return &cp, nil
}

func (g *fakeGateway) MarkGroupMessageRead(_ context.Context, id string, identity string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	gm, ok := g.groupMessages[id]
	if !ok {
		return domain.ErrGroupMessageNotFound
	}
	if !gm.ReadByUser(identity) {
		gm.ReadBy = append(gm.ReadBy, identity)
	}
	return nil
}

// fakeCounter is an in-memory stand-in for the Redis unread counters.
type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (c *fakeCounter) Increment(_ context.Context, identity string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.counts[identity]++
	return c.counts[identity], nil
}

func (c *fakeCounter) Decrement(_ context.Context, identity string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.counts[identity] > 0 {
		c.counts[identity]--
	}
	return c.counts[identity], nil
}

func (c *fakeCounter) Reset(_ context.Context, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, identity)
	return nil
}
