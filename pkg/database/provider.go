package database

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wonny/sfmlstats/pkg/logger"
)

// Conn is the query surface shared by pooled connections, private
// connections, transactions and pgxmock.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tier identifies which acquisition strategy satisfied a Lease
type Tier string

const (
	TierShared  Tier = "shared"
	TierPrivate Tier = "private"
	TierStatic  Tier = "static"
)

// Lease is a scoped connection. Release must be called on every exit path;
// it is safe to call more than once and on a nil Lease.
type Lease struct {
	Conn Conn
	Tier Tier

	release func()
	once    sync.Once
}

// Release returns the connection to its owner
func (l *Lease) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}

// Acquirer yields a scoped connection, or nil when no database is reachable
type Acquirer interface {
	Acquire(ctx context.Context) *Lease
}

// SharedPool is the centralized connection manager tier
type SharedPool interface {
	Connected(ctx context.Context) bool
	AcquireConn(ctx context.Context) (Conn, func(), error)
}

// DialFunc opens a private connection for the fallback tier
type DialFunc func(ctx context.Context, url string) (Conn, func(), error)

// Provider implements the two-tier acquisition strategy: the shared pool when
// it reports connected, otherwise a private connection that is closed on release.
// ⭐ SSOT: 커넥션 획득 전략은 여기서만
type Provider struct {
	shared      SharedPool
	fallbackURL string
	dial        DialFunc
	logger      *logger.Logger
}

// NewProvider creates a provider. shared may be nil; an empty fallbackURL
// disables the private tier.
func NewProvider(shared SharedPool, fallbackURL string, log *logger.Logger) *Provider {
	return &Provider{
		shared:      shared,
		fallbackURL: fallbackURL,
		dial:        dialPrivate,
		logger:      log.WithField("module", "database.provider"),
	}
}

// WithDialer overrides how private connections are opened
func (p *Provider) WithDialer(dial DialFunc) *Provider {
	p.dial = dial
	return p
}

// Acquire returns a lease from the first tier that can serve it, or nil
func (p *Provider) Acquire(ctx context.Context) *Lease {
	if p.shared != nil && p.shared.Connected(ctx) {
		conn, release, err := p.shared.AcquireConn(ctx)
		if err == nil {
			p.logger.Debug("Using shared database connection")
			return &Lease{Conn: conn, Tier: TierShared, release: release}
		}
		p.logger.WithError(err).Warn("Error getting connection from shared pool")
	}

	if p.fallbackURL == "" {
		p.logger.Debug("No fallback database configured")
		return nil
	}

	p.logger.Warn("Shared database pool not available, using direct connection")
	conn, release, err := p.dial(ctx, p.fallbackURL)
	if err != nil {
		p.logger.WithError(err).Error("Error connecting to fallback database")
		return nil
	}

	return &Lease{Conn: conn, Tier: TierPrivate, release: release}
}

func dialPrivate(ctx context.Context, url string) (Conn, func(), error) {
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { _ = conn.Close(context.Background()) }, nil
}

// StaticAcquirer hands out the same connection on every call and never closes it.
// A nil Conn makes every Acquire return nil.
type StaticAcquirer struct {
	Conn Conn
}

// Acquire implements Acquirer
func (s StaticAcquirer) Acquire(ctx context.Context) *Lease {
	if s.Conn == nil {
		return nil
	}
	return &Lease{Conn: s.Conn, Tier: TierStatic}
}
