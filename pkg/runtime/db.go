package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// DB represents a database connection.
type DB struct {
	pool   *pgxpool.Pool
	config *Config
}

// Config represents database configuration. URL, when set, takes precedence
// over the individual fields.
type Config struct {
	URL      string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// NewDB creates a new DB instance from a connection pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{
		pool:   pool,
		config: &Config{},
	}
}

// Connect creates a new DB instance by connecting to PostgreSQL.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply pool configuration
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrNoConnection, err)
	}

	return &DB{
		pool:   pool,
		config: config,
	}, nil
}

// ConnectWithURL creates a new DB instance using a connection URL.
func ConnectWithURL(ctx context.Context, url string) (*DB, error) {
	return Connect(ctx, &Config{URL: url})
}

// Pool returns the underlying pgxpool.Pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Config returns the configuration the connection was opened with.
func (db *DB) Config() *Config {
	return db.config
}

// Close closes the database connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Begin starts a new transaction.
func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

// ConnString renders the configuration as a pgx connection string.
func (c *Config) ConnString() string {
	if c.URL != "" {
		return c.URL
	}

	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", c.Host, port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	return u.String()
}

// DefaultConfig returns a default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		Database: "postgres",
		User:     "postgres",
		SSLMode:  "prefer",
		MaxConns: 10,
		MinConns: 2,
	}
}

// LoadEnvFiles loads variables from the given .env files, or from ./.env when
// none are given. Variables already set in the environment win. A missing
// default file is not an error.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// ConfigFromEnv builds a configuration from DATABASE_URL, falling back to the
// libpq PG* variables over DefaultConfig.
func ConfigFromEnv() (*Config, error) {
	config := DefaultConfig()

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		config.URL = dsn
		return config, nil
	}

	if v := os.Getenv("PGHOST"); v != "" {
		config.Host = v
	}
	if v := os.Getenv("PGPORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PGPORT %q: %w", v, err)
		}
		config.Port = port
	}
	if v := os.Getenv("PGDATABASE"); v != "" {
		config.Database = v
	}
	if v := os.Getenv("PGUSER"); v != "" {
		config.User = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		config.Password = v
	}
	if v := os.Getenv("PGSSLMODE"); v != "" {
		config.SSLMode = v
	}

	return config, nil
}
