package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mindmate/internal/metrics"
	"mindmate/internal/model"
)

const (
	defaultCommunityTextSize = 2000
	anonymousUsername        = "Anonymous"
)

type CommunityStore interface {
	Create(message *model.CommunityMessage) error
	ListRecent(limit int) ([]model.CommunityMessage, error)
}

type CommunityFeed interface {
	Publish(ctx context.Context, msg model.CommunityMessage) error
	Subscribe(ctx context.Context) (<-chan model.CommunityMessage, error)
}

type CommunityService struct {
	store       CommunityStore
	feed        CommunityFeed
	maxTextSize int
	log         *zap.Logger
}

type PostCommunityInput struct {
	UserID   uint
	Username string
	Text     string
	ImageURL string
}

func NewCommunityService(store CommunityStore, feed CommunityFeed, maxTextSize int, log *zap.Logger) *CommunityService {
	if maxTextSize <= 0 {
		maxTextSize = defaultCommunityTextSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CommunityService{
		store:       store,
		feed:        feed,
		maxTextSize: maxTextSize,
		log:         log.Named("community"),
	}
}

func (s *CommunityService) Post(ctx context.Context, input PostCommunityInput) (*model.CommunityMessage, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, ErrMessageEmpty
	}
	if utf8.RuneCountInString(text) > s.maxTextSize {
		return nil, ErrMessageTooLong
	}
	username := strings.TrimSpace(input.Username)
	if username == "" {
		username = anonymousUsername
	}

	msg := &model.CommunityMessage{
		PublicID:  uuid.NewString(),
		UserID:    input.UserID,
		Username:  username,
		Text:      text,
		ImageURL:  strings.TrimSpace(input.ImageURL),
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(msg); err != nil {
		return nil, err
	}
	metrics.Global().CommunityMessages.Inc()

	if s.feed != nil {
		if err := s.feed.Publish(ctx, *msg); err != nil {
			// Stored already; live subscribers will pick it up on their next list.
			s.log.Warn("broadcast community message failed", zap.String("id", msg.PublicID), zap.Error(err))
		}
	}
	return msg, nil
}

func (s *CommunityService) List(limit int) ([]model.CommunityMessage, error) {
	return s.store.ListRecent(limit)
}

func (s *CommunityService) Subscribe(ctx context.Context) (<-chan model.CommunityMessage, error) {
	return s.feed.Subscribe(ctx)
}
