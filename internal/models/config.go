// Package models contains the data structures used throughout pgrefresh.
package models

import "time"

// Config holds the complete configuration for a refresh run.
type Config struct {
	Source    ConnectionProfile // database that gets dumped
	Target    ConnectionProfile // database that gets recreated and restored into
	Backup    BackupSettings
	Retention RetentionPolicy
	Log       LogSettings
}

// ConnectionProfile identifies one database and the roles used against it.
type ConnectionProfile struct {
	Host     string
	Port     int
	Database string
	Owner    string // role that ends up owning the database
	Admin    string // role used for dumps and administrative statements
	Password string // optional; pgpass file and PGPASSWORD are consulted when empty
	SSLMode  string // libpq sslmode for admin sessions, "disable" when unset
}

// BackupSettings holds dump artifact settings and per-phase timeouts.
type BackupSettings struct {
	Directory     string
	DumpTimeout   time.Duration
	SchemaTimeout time.Duration
	DataTimeout   time.Duration
	MinFreeBytes  uint64 // advisory free-disk floor for the backup directory
}

// RetentionPolicy defines how long dump artifacts are kept on disk.
type RetentionPolicy struct {
	Keep time.Duration
}

// LogSettings holds the location of the dated per-run log file.
type LogSettings struct {
	Directory string
}
