// Package admin issues administrative SQL against the target database server:
// session draining, drop/recreate, and ownership changes.
package admin

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/pgerr"
	"github.com/avollmer/pgrefresh/internal/services/conn"
	"github.com/rs/zerolog"
)

// maintenanceDB is the neutral database administrative sessions connect to;
// a database cannot drop itself while connected.
const maintenanceDB = "postgres"

// Sessions from parallel workers disappear with their leader, so only
// leaderless backends are counted and terminated.
const activityFilter = `datname = $1 AND pid <> pg_backend_pid() AND leader_pid IS NULL`

// Service defines the interface for administrative operations on the target.
type Service interface {
	Drain(ctx context.Context, target models.ConnectionProfile) (*models.DrainResult, error)
	Recreate(ctx context.Context, target models.ConnectionProfile) error
	Reown(ctx context.Context, target models.ConnectionProfile) error
}

// Impl implements the admin Service interface.
type Impl struct {
	conns  conn.Service
	logger zerolog.Logger
}

// New creates a new admin service.
func New(logger zerolog.Logger, conns conn.Service) *Impl {
	return &Impl{
		conns:  conns,
		logger: logger,
	}
}

// Drain terminates every other session against the target database. It is
// best-effort: sessions that survive termination are logged, not fatal.
func (s *Impl) Drain(ctx context.Context, target models.ConnectionProfile) (*models.DrainResult, error) {
	db, err := s.conns.Open(ctx, target, target.Admin, maintenanceDB)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	result := &models.DrainResult{}

	result.Active, err = s.countSessions(ctx, db, target.Database)
	if err != nil {
		return nil, pgerr.Admin("count active sessions", err)
	}

	if result.Active == 0 {
		s.logger.Info().Str("database", target.Database).Msg("no other active sessions")
		return result, nil
	}

	s.logger.Info().
		Str("database", target.Database).
		Int("sessions", result.Active).
		Msg("terminating active sessions")

	rows, err := db.QueryContext(ctx,
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity WHERE `+activityFilter,
		target.Database)
	if err != nil {
		return nil, pgerr.Admin("terminate sessions", err)
	}
	for rows.Next() {
		var terminated bool
		if err := rows.Scan(&terminated); err != nil {
			_ = rows.Close()
			return nil, pgerr.Admin("terminate sessions", err)
		}
		if terminated {
			result.Terminated++
		}
	}
	if err := rows.Close(); err != nil {
		return nil, pgerr.Admin("terminate sessions", err)
	}
	if err := rows.Err(); err != nil {
		return nil, pgerr.Admin("terminate sessions", err)
	}

	result.Remaining, err = s.countSessions(ctx, db, target.Database)
	if err != nil {
		return nil, pgerr.Admin("recount active sessions", err)
	}
	if result.Remaining > 0 {
		s.logger.Warn().
			Str("database", target.Database).
			Int("remaining", result.Remaining).
			Msg("sessions still active after termination")
	}

	return result, nil
}

func (s *Impl) countSessions(ctx context.Context, db *sql.DB, database string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT count(*) FROM pg_stat_activity WHERE `+activityFilter,
		database).Scan(&count)
	return count, err
}

// Recreate drops the target database if it exists and creates it fresh, owned
// by the configured owner role. The statements run outside any transaction;
// DROP/CREATE DATABASE cannot execute inside a transaction block.
func (s *Impl) Recreate(ctx context.Context, target models.ConnectionProfile) error {
	if err := validateIdentifier(target.Database); err != nil {
		return pgerr.Admin("recreate database", err)
	}
	if err := validateIdentifier(target.Owner); err != nil {
		return pgerr.Admin("recreate database", err)
	}

	db, err := s.conns.Open(ctx, target, target.Admin, maintenanceDB)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`,
		target.Database).Scan(&exists)
	if err != nil {
		return pgerr.Admin("check database existence", err)
	}

	if exists {
		s.logger.Info().Str("database", target.Database).Msg("dropping database")
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("DROP DATABASE %s", quoteIdentifier(target.Database))); err != nil {
			return pgerr.Admin(fmt.Sprintf("drop database %s", target.Database), err)
		}
	}

	s.logger.Info().
		Str("database", target.Database).
		Str("owner", target.Owner).
		Msg("creating database")
	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("CREATE DATABASE %s OWNER %s",
			quoteIdentifier(target.Database), quoteIdentifier(target.Owner))); err != nil {
		return pgerr.Admin(fmt.Sprintf("create database %s", target.Database), err)
	}

	return nil
}

// Reown grants all privileges on the target database to the admin role and
// transfers ownership to the owner role. The session is closed regardless of
// outcome.
func (s *Impl) Reown(ctx context.Context, target models.ConnectionProfile) error {
	for _, name := range []string{target.Database, target.Admin, target.Owner} {
		if err := validateIdentifier(name); err != nil {
			return pgerr.Admin("change ownership", err)
		}
	}

	db, err := s.conns.Open(ctx, target, target.Admin, "")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s",
			quoteIdentifier(target.Database), quoteIdentifier(target.Admin))); err != nil {
		return pgerr.Admin(fmt.Sprintf("grant privileges on %s to %s", target.Database, target.Admin), err)
	}
	s.logger.Info().
		Str("database", target.Database).
		Str("role", target.Admin).
		Msg("granted all privileges")

	if _, err := db.ExecContext(ctx,
		fmt.Sprintf("ALTER DATABASE %s OWNER TO %s",
			quoteIdentifier(target.Database), quoteIdentifier(target.Owner))); err != nil {
		return pgerr.Admin(fmt.Sprintf("alter owner of %s to %s", target.Database, target.Owner), err)
	}
	s.logger.Info().
		Str("database", target.Database).
		Str("owner", target.Owner).
		Msg("ownership transferred")

	return nil
}
