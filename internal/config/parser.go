// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/spf13/viper"
)

// Defaults applied when the file leaves a key unset.
const (
	DefaultPort          = 5432
	DefaultDumpTimeout   = 10 * time.Minute
	DefaultSchemaTimeout = 10 * time.Minute
	DefaultDataTimeout   = 2 * time.Hour
	DefaultRetention     = 7 * 24 * time.Hour
	DefaultMinFreeBytes  = 1 << 30 // 1 GiB
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.Config, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Config, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.Config, error) {
	cfg := &models.Config{}

	var err error
	cfg.Source, err = p.parseProfile("source")
	if err != nil {
		return nil, err
	}

	cfg.Target, err = p.parseProfile("target")
	if err != nil {
		return nil, err
	}

	// The target inherits the source roles when left unset; the original
	// deployment used the same owner/admin pair on both sides.
	if cfg.Target.Owner == "" {
		cfg.Target.Owner = cfg.Source.Owner
	}
	if cfg.Target.Admin == "" {
		cfg.Target.Admin = cfg.Source.Admin
	}

	if cfg.Source.Owner == "" {
		return nil, fmt.Errorf("source.owner is required")
	}
	if cfg.Source.Admin == "" {
		return nil, fmt.Errorf("source.admin is required")
	}

	// Parse backup settings (required).
	cfg.Backup = models.BackupSettings{
		Directory:     p.expandEnv(p.v.GetString("backup.directory")),
		DumpTimeout:   p.v.GetDuration("backup.dump_timeout"),
		SchemaTimeout: p.v.GetDuration("backup.schema_timeout"),
		DataTimeout:   p.v.GetDuration("backup.data_timeout"),
		MinFreeBytes:  p.v.GetUint64("backup.min_free_bytes"),
	}

	if cfg.Backup.Directory == "" {
		return nil, fmt.Errorf("backup.directory is required")
	}

	// Set defaults.
	if cfg.Backup.DumpTimeout == 0 {
		cfg.Backup.DumpTimeout = DefaultDumpTimeout
	}
	if cfg.Backup.SchemaTimeout == 0 {
		cfg.Backup.SchemaTimeout = DefaultSchemaTimeout
	}
	if cfg.Backup.DataTimeout == 0 {
		cfg.Backup.DataTimeout = DefaultDataTimeout
	}
	if cfg.Backup.MinFreeBytes == 0 {
		cfg.Backup.MinFreeBytes = DefaultMinFreeBytes
	}

	// Parse retention policy.
	cfg.Retention = models.RetentionPolicy{
		Keep: p.v.GetDuration("retention.keep"),
	}
	if cfg.Retention.Keep == 0 {
		cfg.Retention.Keep = DefaultRetention
	}

	// Parse log settings.
	cfg.Log = models.LogSettings{
		Directory: p.expandEnv(p.v.GetString("log.directory")),
	}
	if cfg.Log.Directory == "" {
		cfg.Log.Directory = cfg.Backup.Directory
	}

	return cfg, nil
}

func (p *Parser) parseProfile(key string) (models.ConnectionProfile, error) {
	profile := models.ConnectionProfile{
		Host:     p.v.GetString(key + ".host"),
		Port:     p.v.GetInt(key + ".port"),
		Database: p.v.GetString(key + ".database"),
		Owner:    p.v.GetString(key + ".owner"),
		Admin:    p.v.GetString(key + ".admin"),
		Password: p.expandEnv(p.v.GetString(key + ".password")),
		SSLMode:  p.v.GetString(key + ".sslmode"),
	}

	if profile.Database == "" {
		return profile, fmt.Errorf("%s.database is required", key)
	}
	if profile.Host == "" {
		profile.Host = "localhost"
	}
	if profile.Port == 0 {
		profile.Port = DefaultPort
	}
	if profile.SSLMode == "" {
		profile.SSLMode = "disable"
	}

	return profile, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
func Validate(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	for key, profile := range map[string]models.ConnectionProfile{
		"source": cfg.Source,
		"target": cfg.Target,
	} {
		if profile.Database == "" {
			return fmt.Errorf("%s.database is required", key)
		}
		if profile.Owner == "" {
			return fmt.Errorf("%s.owner is required", key)
		}
		if profile.Admin == "" {
			return fmt.Errorf("%s.admin is required", key)
		}
	}

	if cfg.Backup.Directory == "" {
		return fmt.Errorf("backup.directory is required")
	}

	// Guard against the superseded script flow that restored a dump back into
	// the database it was just taken from, destroying it on a failed restore.
	if cfg.Source.Database == cfg.Target.Database &&
		cfg.Source.Host == cfg.Target.Host &&
		cfg.Source.Port == cfg.Target.Port {
		return fmt.Errorf("source and target must not be the same database")
	}

	return nil
}
