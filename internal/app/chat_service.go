package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mindmate/internal/ai"
	"mindmate/internal/conversation"
	"mindmate/internal/crisis"
	"mindmate/internal/metrics"
	"mindmate/internal/model"
	"mindmate/internal/repository"
)

const (
	defaultHistoryLimit = 100
	historyFetchLimit   = 200
)

type SessionStore interface {
	Create(session *model.Session) error
	ListByUserID(userID uint) ([]model.Session, error)
	GetByIDAndUserID(sessionID, userID uint) (*model.Session, error)
	RenameIfTitle(sessionID uint, current, title string) (bool, error)
	DeleteWithMessages(sessionID, userID uint) error
}

type MessageStore interface {
	ListBySessionID(sessionID uint, limit int) ([]model.Message, error)
	ListRecentBySessionID(sessionID uint, limit int) ([]model.Message, error)
}

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	Invalidate(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

type LLMClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type ChatService struct {
	sessionRepo  SessionStore
	messageRepo  MessageStore
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	llmClient    LLMClient
	defaultLLM   ai.ChatConfig
	systemPrompt string
	window       conversation.Window
	log          *zap.Logger
	now          func() time.Time
}

type ChatServiceDeps struct {
	Sessions     SessionStore
	Messages     MessageStore
	Publisher    AsyncMessagePublisher
	HistoryCache HistoryCache
	LLM          LLMClient
	DefaultLLM   ai.ChatConfig
	SystemPrompt string
	WindowSize   int
	Logger       *zap.Logger
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

type SendMessageInput struct {
	UserID    uint
	SessionID uint
	Content   string
	Voice     bool
	LLM       LLMOverride
}

type LLMOverride struct {
	BaseURL string
	APIKey  string
	Model   string
}

type SendMessageResult struct {
	Session        *model.Session     `json:"session"`
	SessionCreated bool               `json:"session_created"`
	Messages       []model.Message    `json:"messages"`
	CrisisAlerts   []crisis.Alert     `json:"crisis_alerts"`
	Suggestions    crisis.Suggestions `json:"suggestions"`
	Speak          bool               `json:"speak"`
	Window         []string           `json:"window"`
}

// StreamStart is emitted once the session is resolved and before the first chunk.
type StreamStart struct {
	Session        *model.Session `json:"session"`
	SessionCreated bool           `json:"session_created"`
	CrisisAlerts   []crisis.Alert `json:"crisis_alerts"`
}

type preparedTurn struct {
	session     *model.Session
	created     bool
	alerts      []crisis.Alert
	lines       []string
	prompt      []ai.ChatMessage
	cfg         ai.ChatConfig
	userMessage model.Message
}

func NewChatService(deps ChatServiceDeps) *ChatService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		sessionRepo:  deps.Sessions,
		messageRepo:  deps.Messages,
		publisher:    deps.Publisher,
		historyCache: deps.HistoryCache,
		llmClient:    deps.LLM,
		defaultLLM:   deps.DefaultLLM,
		systemPrompt: deps.SystemPrompt,
		window:       conversation.NewWindow(deps.WindowSize),
		log:          log.Named("chat"),
		now:          time.Now,
	}
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	session := &model.Session{
		UserID: input.UserID,
		Title:  conversation.DeriveTitle(input.Title),
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	s.log.Info("session created", zap.Uint("user_id", input.UserID), zap.Uint("session_id", session.ID))
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	if err := s.sessionRepo.DeleteWithMessages(sessionID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if s.historyCache != nil {
		if err := s.historyCache.DeleteHistory(ctx, sessionID); err != nil {
			s.log.Warn("evict history failed", zap.Uint("session_id", sessionID), zap.Error(err))
		}
	}
	s.log.Info("session deleted", zap.Uint("user_id", userID), zap.Uint("session_id", sessionID))
	return nil
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}

	started := s.now()
	reply, err := s.llmClient.Complete(ctx, turn.cfg, turn.prompt)
	metrics.Global().LLMRequestSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		s.log.Error("llm completion failed", zap.Uint("session_id", turn.session.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	return s.finish(ctx, input, turn, reply)
}

func (s *ChatService) StreamMessage(
	ctx context.Context,
	input SendMessageInput,
	onStart func(StreamStart) error,
	onChunk func(string) error,
) (*SendMessageResult, error) {
	turn, err := s.prepare(ctx, input)
	if err != nil {
		return nil, err
	}
	if onStart != nil {
		if err := onStart(StreamStart{Session: turn.session, SessionCreated: turn.created, CrisisAlerts: turn.alerts}); err != nil {
			return nil, err
		}
	}

	started := s.now()
	reply, err := s.llmClient.StreamComplete(ctx, turn.cfg, turn.prompt, onChunk)
	metrics.Global().LLMRequestSeconds.Observe(time.Since(started).Seconds())
	if err != nil {
		s.log.Error("llm stream failed", zap.Uint("session_id", turn.session.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	return s.finish(ctx, input, turn, reply)
}

// prepare resolves the session, runs crisis detection, builds the conversation
// window and enqueues the user's message.
func (s *ChatService) prepare(ctx context.Context, input SendMessageInput) (*preparedTurn, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	cfg, err := s.resolveLLM(input.LLM)
	if err != nil {
		return nil, err
	}

	session, created, err := s.resolveSession(input.UserID, input.SessionID, content)
	if err != nil {
		return nil, err
	}

	var history []model.Message
	if !created {
		history, err = s.messageRepo.ListRecentBySessionID(session.ID, s.window.Size())
		if err != nil {
			return nil, err
		}
	}
	lines := s.window.Lines(history, content)

	alerts := crisis.Detect(content)
	for _, a := range alerts {
		metrics.Global().CrisisAlertsTotal.WithLabelValues(string(a.Category)).Inc()
		s.log.Warn("crisis keywords detected",
			zap.Uint("user_id", input.UserID),
			zap.Uint("session_id", session.ID),
			zap.String("category", string(a.Category)),
		)
	}

	userMessage := model.Message{
		SessionID: session.ID,
		UserID:    input.UserID,
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.enqueue(ctx, userMessage); err != nil {
		return nil, err
	}

	return &preparedTurn{
		session:     session,
		created:     created,
		alerts:      alerts,
		lines:       lines,
		prompt:      ai.PromptMessages(s.systemPrompt, strings.Join(lines, "\n")),
		cfg:         cfg,
		userMessage: userMessage,
	}, nil
}

func (s *ChatService) finish(ctx context.Context, input SendMessageInput, turn *preparedTurn, reply string) (*SendMessageResult, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, fmt.Errorf("%w: empty response", ErrLLMUnavailable)
	}

	assistantMessage := model.Message{
		SessionID: turn.session.ID,
		UserID:    input.UserID,
		Role:      model.RoleAssistant,
		Content:   reply,
		CreatedAt: s.now(),
	}
	if err := s.enqueue(ctx, assistantMessage); err != nil {
		return nil, err
	}

	return &SendMessageResult{
		Session:        turn.session,
		SessionCreated: turn.created,
		Messages:       []model.Message{turn.userMessage, assistantMessage},
		CrisisAlerts:   turn.alerts,
		Suggestions:    crisis.SuggestFor(reply),
		Speak:          input.Voice,
		Window:         turn.lines,
	}, nil
}

func (s *ChatService) enqueue(ctx context.Context, msg model.Message) error {
	if s.historyCache != nil {
		if err := s.historyCache.Invalidate(ctx, msg.SessionID); err != nil {
			s.log.Warn("invalidate history failed", zap.Uint("session_id", msg.SessionID), zap.Error(err))
		}
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Error("enqueue message failed", zap.Uint("session_id", msg.SessionID), zap.Error(err))
		return ErrMessageEnqueue
	}
	metrics.Global().MessagesTotal.WithLabelValues(msg.Role).Inc()
	return nil
}

// resolveSession creates a session on first send, or loads an owned one and names
// it after this message if it still carries the placeholder title.
func (s *ChatService) resolveSession(userID, sessionID uint, content string) (*model.Session, bool, error) {
	if sessionID == 0 {
		session, err := s.CreateSession(CreateSessionInput{UserID: userID, Title: content})
		if err != nil {
			return nil, false, err
		}
		return session, true, nil
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	if session == nil {
		return nil, false, ErrSessionNotFound
	}

	if session.Title == model.PlaceholderSessionTitle {
		title := conversation.DeriveTitle(content)
		renamed, err := s.sessionRepo.RenameIfTitle(session.ID, model.PlaceholderSessionTitle, title)
		if err != nil {
			s.log.Warn("rename session failed", zap.Uint("session_id", session.ID), zap.Error(err))
		} else if renamed {
			session.Title = title
		}
	}
	return session, false, nil
}

func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > historyFetchLimit:
		limit = historyFetchLimit
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	// Always load the full cacheable tail so the cached copy can serve any limit.
	messages, err := s.messageRepo.ListBySessionID(sessionID, historyFetchLimit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if err := s.historyCache.SetHistory(ctx, sessionID, messages); err != nil {
				s.log.Warn("fill history cache failed", zap.Uint("session_id", sessionID), zap.Error(err))
			}
		}
	}
	return trimMessages(messages, limit), nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

// resolveLLM merges a per-request override into the configured endpoint. The
// configured key is only ever sent to the configured base URL: a caller that
// points the request elsewhere must bring its own key.
func (s *ChatService) resolveLLM(override LLMOverride) (ai.ChatConfig, error) {
	cfg := s.defaultLLM
	baseURL := strings.TrimSpace(override.BaseURL)
	apiKey := strings.TrimSpace(override.APIKey)
	if baseURL != "" && apiKey == "" && baseURL != strings.TrimSpace(s.defaultLLM.BaseURL) {
		return ai.ChatConfig{}, ErrLLMConfig
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	if v := strings.TrimSpace(override.Model); v != "" {
		cfg.Model = v
	}
	if cfg.BaseURL == "" || cfg.APIKey == "" || cfg.Model == "" {
		return ai.ChatConfig{}, ErrLLMConfig
	}
	return cfg, nil
}
