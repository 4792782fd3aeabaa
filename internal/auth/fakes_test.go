package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/lms-auth-api/internal/email"
	"github.com/redmonkez12/lms-auth-api/internal/user"
)

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{users: make(map[string]*user.User)}
}

func (s *memoryUserStore) Create(_ context.Context, u *user.User) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Email]; ok {
		return nil, user.ErrDuplicateEmail
	}
	c := *u
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	s.users[c.Email] = &c
	out := c
	return &out, nil
}

func (s *memoryUserStore) GetByEmail(_ context.Context, addr string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[addr]
	if !ok {
		return nil, user.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *memoryUserStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memoryUserStore) byID(id uuid.UUID) (*user.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memoryUserStore) SetResetOTP(_ context.Context, id uuid.UUID, otp string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.byID(id)
	if err != nil {
		return err
	}
	u.ResetOTP, u.ResetOTPExpiresAt, u.IsOTPVerified = &otp, &expiresAt, false
	return nil
}

func (s *memoryUserStore) MarkOTPVerified(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.byID(id)
	if err != nil {
		return err
	}
	u.ResetOTP, u.ResetOTPExpiresAt, u.IsOTPVerified = nil, nil, true
	return nil
}

func (s *memoryUserStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.byID(id)
	if err != nil {
		return err
	}
	u.PasswordHash, u.IsOTPVerified = &hash, false
	return nil
}

func (s *memoryUserStore) ClearExpiredResetOTPs(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, u := range s.users {
		if u.ResetOTPExpiresAt != nil && !now.Before(*u.ResetOTPExpiresAt) {
			u.ResetOTP, u.ResetOTPExpiresAt = nil, nil
			n++
		}
	}
	return n, nil
}

// put stores a user directly, e.g. a Google-created account without password.
func (s *memoryUserStore) put(u *user.User) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.Email] = u
	return u
}

type memoryPendingStore struct {
	mu        sync.Mutex
	records   map[string]*PendingSignup
	deleteErr error
}

func newMemoryPendingStore() *memoryPendingStore {
	return &memoryPendingStore{records: make(map[string]*PendingSignup)}
}

func (s *memoryPendingStore) Create(_ context.Context, p *PendingSignup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *p
	c.CreatedAt = time.Now()
	s.records[c.Email] = &c
	return nil
}

func (s *memoryPendingStore) GetByEmail(_ context.Context, addr string) (*PendingSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[addr]
	if !ok {
		return nil, ErrPendingSignupNotFound
	}
	c := *p
	return &c, nil
}

func (s *memoryPendingStore) DeleteByEmail(_ context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.records, addr)
	return nil
}

func (s *memoryPendingStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, p := range s.records {
		if !now.Before(p.OTPExpiresAt) {
			delete(s.records, k)
			n++
		}
	}
	return n, nil
}

func (s *memoryPendingStore) failDeletes(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr = err
}

func (s *memoryPendingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type sentOTP struct {
	to      string
	otp     string
	purpose email.Purpose
}

type mockNotifier struct {
	mock.Mock
	sent chan sentOTP
}

func newMockNotifier(sendErr error) *mockNotifier {
	n := &mockNotifier{sent: make(chan sentOTP, 16)}
	n.On("SendOTP", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(sendErr)
	return n
}

func (n *mockNotifier) SendOTP(ctx context.Context, to, otp string, purpose email.Purpose) error {
	args := n.Called(ctx, to, otp, purpose)
	n.sent <- sentOTP{to: to, otp: otp, purpose: purpose}
	return args.Error(0)
}

// wait blocks until the background sender delivered a code.
func (n *mockNotifier) wait(t *testing.T) sentOTP {
	t.Helper()
	select {
	case s := <-n.sent:
		return s
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no otp was sent")
		return sentOTP{}
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
