package database

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/sfmlstats/pkg/logger"
)

type fakeShared struct {
	connected bool
	conn      Conn
	err       error
	released  int
}

func (f *fakeShared) Connected(ctx context.Context) bool { return f.connected }

func (f *fakeShared) AcquireConn(ctx context.Context) (Conn, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.conn, func() { f.released++ }, nil
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestProvider_SharedTier(t *testing.T) {
	shared := &fakeShared{connected: true, conn: newMock(t)}
	dialed := false
	p := NewProvider(shared, "postgres://fallback", logger.Nop()).
		WithDialer(func(ctx context.Context, url string) (Conn, func(), error) {
			dialed = true
			return nil, nil, errors.New("should not dial")
		})

	lease := p.Acquire(context.Background())
	require.NotNil(t, lease)
	assert.Equal(t, TierShared, lease.Tier)
	assert.False(t, dialed)

	lease.Release()
	lease.Release()
	assert.Equal(t, 1, shared.released, "release must run exactly once")
}

func TestProvider_FallbackWhenSharedDisconnected(t *testing.T) {
	shared := &fakeShared{connected: false}
	closed := 0
	var gotURL string
	p := NewProvider(shared, "postgres://fallback", logger.Nop()).
		WithDialer(func(ctx context.Context, url string) (Conn, func(), error) {
			gotURL = url
			return newMock(t), func() { closed++ }, nil
		})

	lease := p.Acquire(context.Background())
	require.NotNil(t, lease)
	assert.Equal(t, TierPrivate, lease.Tier)
	assert.Equal(t, "postgres://fallback", gotURL)

	lease.Release()
	assert.Equal(t, 1, closed)
}

func TestProvider_FallbackWhenSharedAcquireFails(t *testing.T) {
	shared := &fakeShared{connected: true, err: errors.New("pool exhausted")}
	p := NewProvider(shared, "postgres://fallback", logger.Nop()).
		WithDialer(func(ctx context.Context, url string) (Conn, func(), error) {
			return newMock(t), func() {}, nil
		})

	lease := p.Acquire(context.Background())
	require.NotNil(t, lease)
	assert.Equal(t, TierPrivate, lease.Tier)
}

func TestProvider_NoTierAvailable(t *testing.T) {
	t.Run("no shared and no fallback", func(t *testing.T) {
		p := NewProvider(nil, "", logger.Nop())
		assert.Nil(t, p.Acquire(context.Background()))
	})

	t.Run("fallback dial fails", func(t *testing.T) {
		p := NewProvider(&fakeShared{}, "postgres://fallback", logger.Nop()).
			WithDialer(func(ctx context.Context, url string) (Conn, func(), error) {
				return nil, nil, errors.New("connection refused")
			})
		assert.Nil(t, p.Acquire(context.Background()))
	})
}

func TestLease_NilRelease(t *testing.T) {
	var lease *Lease
	// Must not panic
	lease.Release()
}

func TestStaticAcquirer(t *testing.T) {
	assert.Nil(t, StaticAcquirer{}.Acquire(context.Background()))

	mock := newMock(t)
	lease := StaticAcquirer{Conn: mock}.Acquire(context.Background())
	require.NotNil(t, lease)
	assert.Equal(t, TierStatic, lease.Tier)
	lease.Release()
}
