package postgres

import (
	"github.com/go-playground/validator/v10"
)

// PostgresConfig configures the relational backend.
type PostgresConfig struct {
	ConnectionString string `validate:"required"`
	// Schema is the Postgres schema the events table lives in. Every query
	// and the DDL in DDL() qualify the table with this schema. Defaults to
	// DefaultSchema.
	Schema string `validate:"omitempty"`
	// BulkInsertThreshold is the minimum batch size that triggers a single
	// multi-row INSERT rather than one statement per event. Defaults to 5;
	// values <= 0 also fall back to 5.
	BulkInsertThreshold int
}

var configValidator = validator.New()

// normalize fills in defaults and validates the configuration, returning the
// normalized copy.
func (c PostgresConfig) normalize() (PostgresConfig, error) {
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	if c.BulkInsertThreshold <= 0 {
		c.BulkInsertThreshold = defaultBulkInsertThreshold
	}
	if err := configValidator.Struct(c); err != nil {
		return PostgresConfig{}, err
	}
	return c, nil
}

const defaultBulkInsertThreshold = 5

// DefaultSchema is the Postgres schema PostgresConfig falls back to when
// Schema is left empty.
const DefaultSchema = "app"
