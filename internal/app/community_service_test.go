package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmate/internal/model"
)

type fakeCommunityStore struct {
	saved []model.CommunityMessage
}

func (s *fakeCommunityStore) Create(m *model.CommunityMessage) error {
	s.saved = append(s.saved, *m)
	return nil
}

func (s *fakeCommunityStore) ListRecent(limit int) ([]model.CommunityMessage, error) {
	if limit < len(s.saved) {
		return s.saved[len(s.saved)-limit:], nil
	}
	return s.saved, nil
}

type fakeFeed struct {
	published []model.CommunityMessage
	err       error
}

func (f *fakeFeed) Publish(_ context.Context, m model.CommunityMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, m)
	return nil
}

func (f *fakeFeed) Subscribe(context.Context) (<-chan model.CommunityMessage, error) {
	ch := make(chan model.CommunityMessage)
	close(ch)
	return ch, nil
}

func TestCommunityPost(t *testing.T) {
	store := &fakeCommunityStore{}
	feed := &fakeFeed{}
	svc := NewCommunityService(store, feed, 20, nil)

	msg, err := svc.Post(context.Background(), PostCommunityInput{UserID: 3, Username: " ", Text: "  hang in there  "})
	require.NoError(t, err)
	assert.Equal(t, "hang in there", msg.Text)
	assert.Equal(t, anonymousUsername, msg.Username)
	assert.Len(t, msg.PublicID, 36)
	assert.False(t, msg.CreatedAt.IsZero())

	require.Len(t, feed.published, 1)
	assert.Equal(t, msg.PublicID, feed.published[0].PublicID)
}

func TestCommunityPostValidation(t *testing.T) {
	svc := NewCommunityService(&fakeCommunityStore{}, &fakeFeed{}, 5, nil)

	_, err := svc.Post(context.Background(), PostCommunityInput{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Post(context.Background(), PostCommunityInput{UserID: 1, Text: "   "})
	assert.ErrorIs(t, err, ErrMessageEmpty)

	_, err = svc.Post(context.Background(), PostCommunityInput{UserID: 1, Text: strings.Repeat("a", 6)})
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestCommunityPostSurvivesBroadcastFailure(t *testing.T) {
	store := &fakeCommunityStore{}
	svc := NewCommunityService(store, &fakeFeed{err: errors.New("redis down")}, 0, nil)

	_, err := svc.Post(context.Background(), PostCommunityInput{UserID: 1, Username: "sam", Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, store.saved, 1)

	list, err := svc.List(10)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
