package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the cube builder.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"`

	// Database holds the control-plane Postgres connection (datasets, revisions,
	// data tables, dimensions, measures) as well as the per-revision cube schemas.
	Database DatabaseConfig `yaml:"database"`

	// Columnar configures the embedded columnar engine used for staging and export.
	Columnar ColumnarConfig `yaml:"columnar"`

	// FileStore configures the local root used to stage downloaded data-table files.
	FileStore FileStoreConfig `yaml:"file_store"`

	// Build configures batch sizes, timeouts and failure policy for cube builds.
	Build BuildConfig `yaml:"build"`

	// Output configures export/preview limits.
	Output OutputConfig `yaml:"output"`

	// Languages is the ordered set of supported locale codes. The first entry
	// is the canonical/default language.
	Languages []string `yaml:"languages" env:"LANGUAGES" env-separator:"," env-default:"en,cy"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"cubebuilder"`
	Password       string `yaml:"-" env:"PGPASSWORD"`
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"cubebuilder"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// ColumnarConfig configures the embedded DuckDB engine used to stage
// uploaded files and stream exports.
type ColumnarConfig struct {
	// TempDir is where the columnar engine spills intermediate data.
	TempDir string `yaml:"temp_dir" env:"COLUMNAR_TEMP_DIR" env-default:"/tmp/cubebuilder-columnar"`
	// MemoryLimitMB bounds the engine's working set per build.
	MemoryLimitMB int `yaml:"memory_limit_mb" env:"COLUMNAR_MEMORY_LIMIT_MB" env-default:"2048"`
}

// FileStoreConfig configures the local staging directory for downloaded files.
type FileStoreConfig struct {
	RootDir        string `yaml:"root_dir" env:"FILE_STORE_ROOT" env-default:"/var/lib/cubebuilder/files"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" env:"FILE_STORE_MAX_UPLOAD_BYTES" env-default:"5368709120"`
}

// BuildConfig configures batch sizes, timeouts and failure policy for builds.
type BuildConfig struct {
	// BulkBatchSize is the configured row batch size for bulk insert/copy
	// paths. pkg/pgstage does not read it: its COPY path flushes every 5000
	// rows.
	BulkBatchSize int `yaml:"bulk_batch_size" env:"BUILD_BULK_BATCH_SIZE" env-default:"200000"`
	// StageTimeoutSeconds is the configured per-stage time budget. No build
	// stage reads it: stage durations are neither bounded nor logged
	// against it.
	StageTimeoutSeconds int `yaml:"stage_timeout_seconds" env:"BUILD_STAGE_TIMEOUT_SECONDS" env-default:"900"`
	// CleanupSchemaOnFailure drops the per-revision schema when a build fails,
	// instead of leaving it for post-mortem inspection.
	CleanupSchemaOnFailure bool `yaml:"cleanup_schema_on_failure" env:"BUILD_CLEANUP_SCHEMA_ON_FAILURE" env-default:"false"`
	// MaterializeViews controls whether default_mat_view_*/raw_mat_view_* are
	// created after the base views succeed.
	MaterializeViews bool `yaml:"materialize_views" env:"BUILD_MATERIALIZE_VIEWS" env-default:"true"`
	// NonMatchingSampleSize bounds how many non-matching values a
	// DimensionNonMatchedRows error reports.
	NonMatchingSampleSize int `yaml:"non_matching_sample_size" env:"BUILD_NON_MATCHING_SAMPLE_SIZE" env-default:"50"`
}

// OutputConfig configures export/preview limits.
type OutputConfig struct {
	// ExcelRowLimit is the row count at which workbook export rolls to a new sheet.
	ExcelRowLimit int `yaml:"excel_row_limit" env:"OUTPUT_EXCEL_ROW_LIMIT" env-default:"1048500"`
	// PreviewPageSize bounds rows returned per paginated preview page.
	PreviewPageSize int `yaml:"preview_page_size" env:"OUTPUT_PREVIEW_PAGE_SIZE" env-default:"500"`
	// StreamBatchSize is the cursor fetch size used by streaming exports.
	StreamBatchSize int `yaml:"stream_batch_size" env:"OUTPUT_STREAM_BATCH_SIZE" env-default:"10000"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"en", "cy"}
	}

	return cfg, nil
}
