// Package conn opens PostgreSQL sessions with layered password resolution.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // postgres driver

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/pgerr"
	"github.com/avollmer/pgrefresh/internal/pgpass"
	"github.com/rs/zerolog"
)

// Service defines the interface for opening database sessions.
type Service interface {
	// Open opens a session against the profile's database as the given role.
	// dbOverride selects a different database on the same server, e.g. the
	// neutral maintenance database for administrative statements.
	Open(ctx context.Context, profile models.ConnectionProfile, user, dbOverride string) (*sql.DB, error)

	// Password resolves the password for a profile/role pair and reports the
	// source it came from: "config", "pgpass", "env" or "none".
	Password(profile models.ConnectionProfile, user string) (value, source string)
}

// Resolver is the password-resolution half of Service, for callers that build
// subprocess environments rather than sessions.
type Resolver interface {
	Password(profile models.ConnectionProfile, user string) (value, source string)
}

// PasswordLookup matches the pgpass file lookup, injectable for tests.
type PasswordLookup func(host string, port int, database, user string) (string, bool)

// Getenv matches os.Getenv, injectable for tests.
type Getenv func(key string) string

// Impl implements the Service interface.
type Impl struct {
	lookup PasswordLookup
	getenv Getenv
	logger zerolog.Logger
}

// New creates a new connection service.
func New(logger zerolog.Logger, getenv Getenv) *Impl {
	return &Impl{
		lookup: pgpass.Lookup,
		getenv: getenv,
		logger: logger,
	}
}

// NewWithLookup creates a new connection service with a custom pgpass lookup
// (for testing).
func NewWithLookup(logger zerolog.Logger, lookup PasswordLookup, getenv Getenv) *Impl {
	return &Impl{
		lookup: lookup,
		getenv: getenv,
		logger: logger,
	}
}

// Password resolves a password: explicit config value, then the pgpass file,
// then the PGPASSWORD environment variable, then passwordless. The value is
// never logged, only its source.
func (s *Impl) Password(profile models.ConnectionProfile, user string) (string, string) {
	if profile.Password != "" {
		return profile.Password, "config"
	}
	if pw, found := s.lookup(profile.Host, profile.Port, profile.Database, user); found {
		return pw, "pgpass"
	}
	if pw := s.getenv("PGPASSWORD"); pw != "" {
		return pw, "env"
	}
	return "", "none"
}

// Open opens a session and verifies it with a ping so authentication and
// network failures surface here rather than on first use.
func (s *Impl) Open(ctx context.Context, profile models.ConnectionProfile, user, dbOverride string) (*sql.DB, error) {
	dbName := dbOverride
	if dbName == "" {
		dbName = profile.Database
	}

	dsn, source := s.sessionDSN(profile, user, dbName)

	s.logger.Debug().
		Str("host", profile.Host).
		Int("port", profile.Port).
		Str("database", dbName).
		Str("user", user).
		Str("password_source", source).
		Msg("opening database session")

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, pgerr.Connection(
			fmt.Sprintf("open session to %s@%s:%d/%s", user, profile.Host, profile.Port, dbName), err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, pgerr.Connection(
			fmt.Sprintf("connect to %s@%s:%d/%s", user, profile.Host, profile.Port, dbName), err)
	}

	return db, nil
}

// sessionDSN builds the keyword/value connection string for a session and
// reports the password source. The password lookup is keyed on the database
// actually connected to, which for administrative sessions is an override
// rather than the profile's database; this matches libpq's own pgpass
// matching.
func (s *Impl) sessionDSN(profile models.ConnectionProfile, user, dbName string) (string, string) {
	lookupProfile := profile
	lookupProfile.Database = dbName
	password, source := s.Password(lookupProfile, user)

	sslMode := profile.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		quoteDSNValue(profile.Host), profile.Port, quoteDSNValue(user),
		quoteDSNValue(dbName), quoteDSNValue(sslMode))
	if password != "" {
		dsn += " password=" + quoteDSNValue(password)
	}

	return dsn, source
}

// quoteDSNValue single-quotes a keyword/value field so spaces and quote
// characters in a value cannot break the string or smuggle in extra
// connection parameters.
func quoteDSNValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
