package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
	Server   ServerConfig
	Journal  JournalConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // sqlite3 or pgx
	Path            string // sqlite file, or postgres DSN when Driver is pgx
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// LedgerConfig identifies this application to the ledger service
type LedgerConfig struct {
	Environment      string
	EnvironmentsFile string
	BaseURL          string
	AppKey           string
	AppKeyAlias      string
	AppSecret        string
	RequestTimeout   time.Duration
}

// ServerConfig holds the inbound callback server settings
type ServerConfig struct {
	Addr            string
	CallbackBaseURL string
	PathPrefix      string
	HandlerTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// JournalConfig holds the optional Formance settlement journal settings.
// The journal is disabled when StackURL is empty.
type JournalConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether a Formance stack has been configured.
func (c JournalConfig) Enabled() bool {
	return c.StackURL != ""
}
