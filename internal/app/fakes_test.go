package app

import (
	"context"
	"errors"
	"sync"

	"mindmate/internal/ai"
	"mindmate/internal/model"
	"mindmate/internal/repository"
)

type fakeSessions struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]*model.Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[uint]*model.Session{}}
}

func (f *fakeSessions) Create(s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s.ID = f.nextID
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessions) ListByUserID(userID uint) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for id := f.nextID; id > 0; id-- {
		if s, ok := f.sessions[id]; ok && s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessions) GetByIDAndUserID(sessionID, userID uint) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) RenameIfTitle(sessionID uint, current, title string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.Title != current {
		return false, nil
	}
	s.Title = title
	return true, nil
}

func (f *fakeSessions) DeleteWithMessages(sessionID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return repository.ErrNotFound
	}
	delete(f.sessions, sessionID)
	return nil
}

type fakeMessages struct {
	bySession map[uint][]model.Message
	listCalls int
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{bySession: map[uint][]model.Message{}}
}

func (f *fakeMessages) ListBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	f.listCalls++
	return f.ListRecentBySessionID(sessionID, limit)
}

func (f *fakeMessages) ListRecentBySessionID(sessionID uint, limit int) ([]model.Message, error) {
	msgs := f.bySession[sessionID]
	if limit < len(msgs) {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]model.Message(nil), msgs...), nil
}

// fakePublisher writes straight into fakeMessages, standing in for queue + worker.
type fakePublisher struct {
	messages  *fakeMessages
	published []model.Message
	failOn    string
}

func (p *fakePublisher) Publish(_ context.Context, msg model.Message) error {
	if p.failOn != "" && p.failOn == msg.Role {
		return errors.New("broker down")
	}
	p.published = append(p.published, msg)
	if p.messages != nil {
		p.messages.bySession[msg.SessionID] = append(p.messages.bySession[msg.SessionID], msg)
	}
	return nil
}

type fakeHistoryCache struct {
	history     map[uint][]model.Message
	dirty       map[uint]bool
	invalidated []uint
	deleted     []uint
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{history: map[uint][]model.Message{}, dirty: map[uint]bool{}}
}

func (c *fakeHistoryCache) GetHistory(_ context.Context, id uint) ([]model.Message, bool, error) {
	h, ok := c.history[id]
	return h, ok, nil
}

func (c *fakeHistoryCache) SetHistory(_ context.Context, id uint, msgs []model.Message) error {
	c.history[id] = msgs
	return nil
}

func (c *fakeHistoryCache) DeleteHistory(_ context.Context, id uint) error {
	c.deleted = append(c.deleted, id)
	delete(c.history, id)
	delete(c.dirty, id)
	return nil
}

func (c *fakeHistoryCache) Invalidate(_ context.Context, id uint) error {
	c.invalidated = append(c.invalidated, id)
	c.dirty[id] = true
	delete(c.history, id)
	return nil
}

func (c *fakeHistoryCache) IsDirty(_ context.Context, id uint) (bool, error) {
	return c.dirty[id], nil
}

type fakeLLM struct {
	reply    string
	chunks   []string
	err      error
	lastCfg  ai.ChatConfig
	lastSent []ai.ChatMessage
}

func (l *fakeLLM) Complete(_ context.Context, cfg ai.ChatConfig, msgs []ai.ChatMessage) (string, error) {
	l.lastCfg = cfg
	l.lastSent = msgs
	return l.reply, l.err
}

func (l *fakeLLM) StreamComplete(_ context.Context, cfg ai.ChatConfig, msgs []ai.ChatMessage, onChunk func(string) error) (string, error) {
	l.lastCfg = cfg
	l.lastSent = msgs
	if l.err != nil {
		return "", l.err
	}
	full := ""
	for _, c := range l.chunks {
		if err := onChunk(c); err != nil {
			return "", err
		}
		full += c
	}
	return full, nil
}
