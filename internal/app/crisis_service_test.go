package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindmate/internal/cache"
	"mindmate/internal/crisis"
	"mindmate/internal/model"
	"mindmate/internal/telephony"
)

type fakeDialer struct {
	dialed   []string
	sid      string
	err      error
	readyErr error
}

func (d *fakeDialer) Ready() error {
	return d.readyErr
}

func (d *fakeDialer) Dial(_ context.Context, req telephony.CallRequest) (string, error) {
	d.dialed = append(d.dialed, req.To)
	return d.sid, d.err
}

type fakeCalls struct {
	calls []model.CrisisCall
}

func (c *fakeCalls) Create(call *model.CrisisCall) error {
	c.calls = append(c.calls, *call)
	return nil
}

func (c *fakeCalls) ListByUserID(userID uint, _ int) ([]model.CrisisCall, error) {
	var out []model.CrisisCall
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].UserID == userID {
			out = append(out, c.calls[i])
		}
	}
	return out, nil
}

func newCrisisFixture(t *testing.T, dialer *fakeDialer) (*CrisisService, *fakeCalls) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	calls := &fakeCalls{}
	svc := NewCrisisService(CrisisServiceDeps{
		Dialer:         dialer,
		Calls:          calls,
		Cooldown:       cache.NewCallCooldown(rdb, time.Minute),
		DefaultHotline: "+15550000001",
		Hotlines:       map[string]string{"assault": "+15550000002"},
	})
	return svc, calls
}

func TestInitiateCallRoutesByCategory(t *testing.T) {
	dialer := &fakeDialer{sid: "CA123"}
	svc, calls := newCrisisFixture(t, dialer)

	res, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "CA123", res.CallSID)
	assert.Equal(t, crisis.CategorySuicide, res.Category)

	res, err = svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 2, Category: "assault"})
	require.NoError(t, err)
	assert.Equal(t, crisis.CategoryAssault, res.Category)

	assert.Equal(t, []string{"+15550000001", "+15550000002"}, dialer.dialed)
	require.Len(t, calls.calls, 2)
	assert.Equal(t, model.CallStatusInitiated, calls.calls[0].Status)
}

func TestInitiateCallCooldown(t *testing.T) {
	dialer := &fakeDialer{sid: "CA1"}
	svc, _ := newCrisisFixture(t, dialer)

	_, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	require.NoError(t, err)

	_, err = svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	assert.ErrorIs(t, err, ErrCallCooldown)
	assert.Len(t, dialer.dialed, 1)
}

func TestInitiateCallIdempotencyReplay(t *testing.T) {
	dialer := &fakeDialer{sid: "CA9"}
	svc, _ := newCrisisFixture(t, dialer)

	first, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, "CA9", second.CallSID)
	assert.Len(t, dialer.dialed, 1)
}

func TestInitiateCallFailureReleasesCooldown(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("twilio 500")}
	svc, calls := newCrisisFixture(t, dialer)

	_, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	assert.ErrorIs(t, err, ErrCallFailed)
	require.Len(t, calls.calls, 1)
	assert.Equal(t, model.CallStatusFailed, calls.calls[0].Status)
	assert.Equal(t, "twilio 500", calls.calls[0].Error)

	dialer.err = nil
	dialer.sid = "CA2"
	res, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, "CA2", res.CallSID)
}

func TestInitiateCallConfigErrors(t *testing.T) {
	dialer := &fakeDialer{readyErr: telephony.ErrCredentialsNotSet}
	svc, calls := newCrisisFixture(t, dialer)
	_, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	assert.ErrorIs(t, err, ErrTelephonyConfig)
	assert.Empty(t, dialer.dialed)
	require.Len(t, calls.calls, 1)
	assert.Equal(t, model.CallStatusFailed, calls.calls[0].Status)

	noNumbers := NewCrisisService(CrisisServiceDeps{Dialer: &fakeDialer{}, Calls: &fakeCalls{}})
	_, err = noNumbers.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	assert.ErrorIs(t, err, ErrTelephonyConfig)
}

func TestInitiateCallValidation(t *testing.T) {
	svc, _ := newCrisisFixture(t, &fakeDialer{sid: "x"})

	_, err := svc.InitiateCall(context.Background(), InitiateCallInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1, Category: "flood"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCheck(t *testing.T) {
	svc, _ := newCrisisFixture(t, &fakeDialer{})
	assert.Len(t, svc.Check("I want to end my life"), 1)
	assert.Empty(t, svc.Check("good morning"))
}

func TestListCalls(t *testing.T) {
	svc, _ := newCrisisFixture(t, &fakeDialer{sid: "CA7"})
	_, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 4})
	require.NoError(t, err)

	calls, err := svc.ListCalls(4, 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "CA7", calls[0].CallSID)

	_, err = svc.ListCalls(0, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInitiateCallReportsCredentialsBeforeNumbers(t *testing.T) {
	svc := NewCrisisService(CrisisServiceDeps{
		Dialer: &fakeDialer{readyErr: telephony.ErrCredentialsNotSet},
		Calls:  &fakeCalls{},
	})
	_, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1})
	assert.ErrorIs(t, err, ErrTelephonyConfig)
	assert.Contains(t, err.Error(), telephony.ErrCredentialsNotSet.Error())
	assert.NotContains(t, err.Error(), telephony.ErrNumbersNotSet.Error())
}

type slowDialer struct {
	delay time.Duration
	calls atomic.Int32
	fail  bool
}

func (d *slowDialer) Ready() error { return nil }

func (d *slowDialer) Dial(context.Context, telephony.CallRequest) (string, error) {
	d.calls.Add(1)
	time.Sleep(d.delay)
	if d.fail {
		return "", errors.New("carrier busy")
	}
	return "CA-slow", nil
}

func newSlowCrisisService(t *testing.T, dialer *slowDialer) *CrisisService {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewCrisisService(CrisisServiceDeps{
		Dialer:         dialer,
		Calls:          &fakeCalls{},
		Cooldown:       cache.NewCallCooldown(rdb, time.Minute),
		DefaultHotline: "+15550000001",
	})
}

func initiateConcurrently(svc *CrisisService, n int) ([]*CallResult, []error) {
	results := make([]*CallResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1, IdempotencyKey: "k1"})
		}(i)
	}
	wg.Wait()
	return results, errs
}

func TestInitiateCallConcurrentRetriesShareOneCall(t *testing.T) {
	dialer := &slowDialer{delay: 50 * time.Millisecond}
	svc := newSlowCrisisService(t, dialer)

	results, errs := initiateConcurrently(svc, 3)

	replayed := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, "CA-slow", results[i].CallSID)
		if results[i].Replayed {
			replayed++
		}
	}
	assert.Equal(t, 2, replayed)
	assert.EqualValues(t, 1, dialer.calls.Load())
}

func TestInitiateCallConcurrentRetriesShareFailure(t *testing.T) {
	dialer := &slowDialer{delay: 50 * time.Millisecond, fail: true}
	svc := newSlowCrisisService(t, dialer)

	_, errs := initiateConcurrently(svc, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrCallFailed)
	}
	assert.EqualValues(t, 1, dialer.calls.Load())

	dialer.fail = false
	res, err := svc.InitiateCall(context.Background(), InitiateCallInput{UserID: 1, IdempotencyKey: "k1"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.EqualValues(t, 2, dialer.calls.Load())
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	s := strings.Repeat("a", 511) + "é" + "tail"
	got := truncate(s, 512)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", 511), got)

	assert.Equal(t, "short", truncate("short", 512))
	assert.Equal(t, "héllo", truncate("héllo", 6))
}
