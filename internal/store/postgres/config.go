package postgres

// StoreConfig holds configuration for the PostgreSQL store beyond the
// connection pool settings in PoolConfig.
type StoreConfig struct {
	// Pool configures the underlying pgx connection pool.
	Pool PoolConfig `yaml:"pool"`

	// AutoMigrate runs pending schema migrations on startup when enabled.
	// Production deployments typically run migrations out of band.
	AutoMigrate bool `yaml:"auto_migrate"`

	// QueryTimeoutSeconds is the maximum time a query can run before timing out.
	// Default: 10 seconds.
	// Set to 0 to use context timeouts only (no additional timeout)
	QueryTimeoutSeconds int32 `yaml:"query_timeout_seconds"`
}

// ApplyDefaults applies default values to unset configuration fields.
func (c *StoreConfig) ApplyDefaults() {
	if c.QueryTimeoutSeconds == 0 {
		c.QueryTimeoutSeconds = 10
	}
	c.Pool.ApplyDefaults()
}

// Validate checks that the configuration is valid.
func (c *StoreConfig) Validate() error {
	return c.Pool.Validate()
}
