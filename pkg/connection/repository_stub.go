package connection

import (
	"context"
	"sync"
	"time"
)

// RepositoryStub is an in-memory Repository used by tests.
type RepositoryStub struct {
	mu     sync.RWMutex
	items  map[int]Connection
	nextId int

	// TokenUpdates records every UpdateToken call for assertions.
	TokenUpdates []TokenUpdate
}

type TokenUpdate struct {
	Id          int
	AccessToken string
	Expiry      time.Time
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items:  make(map[int]Connection),
		nextId: 1,
	}
}

func (r *RepositoryStub) GetActiveByProgram(ctx context.Context, businessId, programId string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if programId == "" {
		return nil, nil
	}
	return r.findLocked(func(c Connection) bool {
		return c.Active && c.BusinessId == businessId && c.ProgramId == programId
	}), nil
}

func (r *RepositoryStub) GetActiveDefault(ctx context.Context, businessId string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(func(c Connection) bool {
		return c.Active && c.BusinessId == businessId && c.ProgramId == ""
	}), nil
}

func (r *RepositoryStub) findLocked(match func(Connection) bool) *Connection {
	var found *Connection
	for id := 1; id < r.nextId; id++ {
		c, ok := r.items[id]
		if ok && match(c) {
			found = &c
			break
		}
	}
	return found
}

func (r *RepositoryStub) UpdateToken(ctx context.Context, id int, accessToken string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if ok {
		c.AccessToken = accessToken
		c.TokenExpiry = expiry
		r.items[id] = c
	}
	r.TokenUpdates = append(r.TokenUpdates, TokenUpdate{Id: id, AccessToken: accessToken, Expiry: expiry})
	return nil
}

func (r *RepositoryStub) Create(ctx context.Context, conn Connection) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn.Id = r.nextId
	conn.Active = true
	r.items[conn.Id] = conn
	r.nextId++
	return conn.Id, nil
}

func (r *RepositoryStub) Deactivate(ctx context.Context, businessId, programId string, provider Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.items {
		if c.BusinessId == businessId && c.ProgramId == programId && c.Provider == provider {
			c.Active = false
			r.items[id] = c
		}
	}
	return nil
}
