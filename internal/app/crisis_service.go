package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"mindmate/internal/crisis"
	"mindmate/internal/metrics"
	"mindmate/internal/model"
	"mindmate/internal/telephony"
)

// CallDialer places calls. Ready reports missing credentials before any number
// is looked at.
type CallDialer interface {
	Ready() error
	Dial(ctx context.Context, req telephony.CallRequest) (string, error)
}

type CrisisCallStore interface {
	Create(call *model.CrisisCall) error
	ListByUserID(userID uint, limit int) ([]model.CrisisCall, error)
}

type CallCooldown interface {
	Acquire(ctx context.Context, userID uint) (bool, error)
	Release(ctx context.Context, userID uint) error
}

type CrisisService struct {
	dialer         CallDialer
	calls          CrisisCallStore
	cooldown       CallCooldown
	defaultHotline string
	hotlines       map[string]string
	replays        *gocache.Cache
	log            *zap.Logger
}

type CrisisServiceDeps struct {
	Dialer         CallDialer
	Calls          CrisisCallStore
	Cooldown       CallCooldown
	DefaultHotline string
	Hotlines       map[string]string
	IdempotencyTTL time.Duration
	Logger         *zap.Logger
}

type InitiateCallInput struct {
	UserID         uint
	Category       string
	IdempotencyKey string
}

type CallResult struct {
	CallSID  string          `json:"callSid"`
	Category crisis.Category `json:"category"`
	Replayed bool            `json:"replayed"`
}

func NewCrisisService(deps CrisisServiceDeps) *CrisisService {
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &CrisisService{
		dialer:         deps.Dialer,
		calls:          deps.Calls,
		cooldown:       deps.Cooldown,
		defaultHotline: strings.TrimSpace(deps.DefaultHotline),
		hotlines:       deps.Hotlines,
		replays:        gocache.New(ttl, 2*ttl),
		log:            log.Named("crisis"),
	}
}

// Check runs the keyword detector without side effects.
func (s *CrisisService) Check(text string) []crisis.Alert {
	return crisis.Detect(text)
}

func (s *CrisisService) hotlineFor(category crisis.Category) string {
	if number := strings.TrimSpace(s.hotlines[string(category)]); number != "" {
		return number
	}
	return s.defaultHotline
}

// InitiateCall dials the hotline for the category once. Requests sharing an
// idempotency key share one outcome, including while the first is still dialing;
// otherwise a per-user cooldown blocks re-dialing.
func (s *CrisisService) InitiateCall(ctx context.Context, input InitiateCallInput) (*CallResult, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}
	category, ok := crisis.ParseCategory(input.Category)
	if !ok {
		return nil, ErrInvalidInput
	}

	key := strings.TrimSpace(input.IdempotencyKey)
	if key == "" {
		return s.dial(ctx, input.UserID, category)
	}

	replayKey := fmt.Sprintf("%d:%s", input.UserID, key)
	pending, owner := s.claimReplay(replayKey)
	if !owner {
		select {
		case <-pending.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if pending.err != nil {
			return nil, pending.err
		}
		result := *pending.result
		result.Replayed = true
		return &result, nil
	}

	result, err := s.dial(ctx, input.UserID, category)
	pending.result, pending.err = result, err
	if err != nil {
		// Only successes are replayed; a later retry with the key dials again.
		s.replays.Delete(replayKey)
	}
	close(pending.done)
	return result, err
}

// pendingCall is the replay entry for one idempotency key. done is closed once
// result or err is set.
type pendingCall struct {
	done   chan struct{}
	result *CallResult
	err    error
}

// claimReplay reserves key for the caller, or returns the entry another request
// already holds.
func (s *CrisisService) claimReplay(key string) (*pendingCall, bool) {
	for {
		entry := &pendingCall{done: make(chan struct{})}
		if err := s.replays.Add(key, entry, gocache.DefaultExpiration); err == nil {
			return entry, true
		}
		if cached, found := s.replays.Get(key); found {
			return cached.(*pendingCall), false
		}
	}
}

func (s *CrisisService) dial(ctx context.Context, userID uint, category crisis.Category) (*CallResult, error) {
	if err := s.dialer.Ready(); err != nil {
		s.record(userID, category, "", err)
		return nil, fmt.Errorf("%w: %v", ErrTelephonyConfig, err)
	}
	to := s.hotlineFor(category)
	if to == "" {
		s.record(userID, category, "", telephony.ErrNumbersNotSet)
		return nil, fmt.Errorf("%w: %v", ErrTelephonyConfig, telephony.ErrNumbersNotSet)
	}

	if s.cooldown != nil {
		acquired, err := s.cooldown.Acquire(ctx, userID)
		if err != nil {
			// A cache outage must not block an emergency call.
			s.log.Warn("cooldown check failed", zap.Uint("user_id", userID), zap.Error(err))
		} else if !acquired {
			return nil, ErrCallCooldown
		}
	}

	sid, err := s.dialer.Dial(ctx, telephony.CallRequest{To: to})
	if err != nil {
		s.record(userID, category, "", err)
		if s.cooldown != nil {
			if relErr := s.cooldown.Release(ctx, userID); relErr != nil {
				s.log.Warn("release cooldown failed", zap.Uint("user_id", userID), zap.Error(relErr))
			}
		}
		s.log.Error("crisis call failed",
			zap.Uint("user_id", userID),
			zap.String("category", string(category)),
			zap.Error(err),
		)
		if errors.Is(err, telephony.ErrCredentialsNotSet) || errors.Is(err, telephony.ErrNumbersNotSet) {
			return nil, fmt.Errorf("%w: %v", ErrTelephonyConfig, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrCallFailed, err)
	}

	s.record(userID, category, sid, nil)
	s.log.Info("crisis call initiated",
		zap.Uint("user_id", userID),
		zap.String("category", string(category)),
		zap.String("call_sid", sid),
	)
	return &CallResult{CallSID: sid, Category: category}, nil
}

// ListCalls returns the user's escalation attempts, newest first.
func (s *CrisisService) ListCalls(userID uint, limit int) ([]model.CrisisCall, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if s.calls == nil {
		return []model.CrisisCall{}, nil
	}
	return s.calls.ListByUserID(userID, limit)
}

func (s *CrisisService) record(userID uint, category crisis.Category, sid string, callErr error) {
	call := &model.CrisisCall{
		UserID:   userID,
		Category: string(category),
		CallSID:  sid,
		Status:   model.CallStatusInitiated,
	}
	if callErr != nil {
		call.Status = model.CallStatusFailed
		call.Error = truncate(callErr.Error(), 512)
	}
	metrics.Global().CrisisCallsTotal.WithLabelValues(call.Status).Inc()

	if s.calls == nil {
		return
	}
	if err := s.calls.Create(call); err != nil {
		s.log.Warn("record crisis call failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
