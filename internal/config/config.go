package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	OCR     OCRConfig
	Extract ExtractConfig
	Upload  UploadConfig
	S3      S3Config
	Log     LogConfig
	CORS    CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds database connection settings. Driver selects between
// PostgreSQL (Host..SSLMode) and SQLite (Path).
type DBConfig struct {
	Driver      string        `mapstructure:"driver"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Name        string        `mapstructure:"name"`
	SSLMode     string        `mapstructure:"sslmode"`
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	AutoMigrate bool          `mapstructure:"auto_migrate"`
	SaveRetries int           `mapstructure:"save_retries"`
	SaveTimeout time.Duration `mapstructure:"save_timeout"`
}

// DSN returns the connection string for the configured driver.
func (d *DBConfig) DSN() string {
	if d.Driver == DriverSQLite {
		q := url.Values{}
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", d.BusyTimeout.Milliseconds()))
		return "file:" + d.Path + "?" + q.Encode()
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// OCRConfig holds tesseract invocation settings.
type OCRConfig struct {
	Binary      string        `mapstructure:"binary"`
	Lang        string        `mapstructure:"lang"`
	TessdataDir string        `mapstructure:"tessdata_dir"`
	HeaderPSM   int           `mapstructure:"header_psm"`
	TablePSM    int           `mapstructure:"table_psm"`
	OEM         int           `mapstructure:"oem"`
	Confidence  bool          `mapstructure:"confidence"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ExtractConfig holds extraction engine settings.
type ExtractConfig struct {
	TableSplit string `mapstructure:"table_split"`
}

// UploadConfig holds settings for incoming files.
type UploadConfig struct {
	Dir           string `mapstructure:"dir"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
}

// MaxBytes returns the upload limit in bytes.
func (u *UploadConfig) MaxBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// S3Config holds settings for archiving original uploads.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Flags returns the command-line overrides understood by Load. Flag names
// mirror config keys, e.g. --db.driver=sqlite.
func Flags(name string) *pflag.FlagSet {
	set := pflag.NewFlagSet(name, pflag.ContinueOnError)
	set.String("env-file", ".env", "optional dotenv file loaded before reading the environment")
	set.String("server.port", "", "listen address")
	set.String("db.driver", "", "database driver (postgres or sqlite)")
	set.String("db.path", "", "sqlite database file")
	set.Bool("db.auto_migrate", false, "apply migrations at startup")
	set.String("ocr.binary", "", "tesseract executable")
	set.String("ocr.lang", "", "tesseract language")
	set.Bool("ocr.confidence", false, "compute OCR confidence from tesseract TSV output")
	set.String("extract.table_split", "", "table split mode (auto, whitespace or gap)")
	set.String("upload.dir", "", "directory for temporary upload files")
	set.String("log.level", "", "log level")
	set.String("log.format", "", "log format (json or console)")
	return set
}

// Load reads configuration from environment variables with the INVOICEOCR_
// prefix. A dotenv file is read first if present. Flags that were set on the
// command line take precedence over the environment; flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	envFile := ".env"
	if flags != nil {
		if f := flags.Lookup("env-file"); f != nil {
			envFile = f.Value.String()
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config.Load: reading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("INVOICEOCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.driver", DriverPostgres)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "invoiceocr")
	v.SetDefault("db.password", "invoiceocr_secret")
	v.SetDefault("db.name", "invoiceocr")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.path", "invoices.db")
	v.SetDefault("db.busy_timeout", "5s")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("db.save_retries", 2)
	v.SetDefault("db.save_timeout", "30s")

	// OCR defaults
	v.SetDefault("ocr.binary", "tesseract")
	v.SetDefault("ocr.lang", "eng")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.header_psm", 3)
	v.SetDefault("ocr.table_psm", 6)
	v.SetDefault("ocr.oem", 3)
	v.SetDefault("ocr.confidence", false)
	v.SetDefault("ocr.timeout", "60s")

	v.SetDefault("extract.table_split", "auto")

	v.SetDefault("upload.dir", os.TempDir())
	v.SetDefault("upload.max_file_size_mb", 20)

	// S3 archive defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "invoiceocr-originals")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":             "INVOICEOCR_SERVER_PORT",
		"server.read_timeout":     "INVOICEOCR_SERVER_READ_TIMEOUT",
		"server.write_timeout":    "INVOICEOCR_SERVER_WRITE_TIMEOUT",
		"server.environment":      "INVOICEOCR_SERVER_ENVIRONMENT",
		"db.driver":               "INVOICEOCR_DB_DRIVER",
		"db.host":                 "INVOICEOCR_DB_HOST",
		"db.port":                 "INVOICEOCR_DB_PORT",
		"db.user":                 "INVOICEOCR_DB_USER",
		"db.password":             "INVOICEOCR_DB_PASSWORD",
		"db.name":                 "INVOICEOCR_DB_NAME",
		"db.sslmode":              "INVOICEOCR_DB_SSLMODE",
		"db.path":                 "INVOICEOCR_DB_PATH",
		"db.busy_timeout":         "INVOICEOCR_DB_BUSY_TIMEOUT",
		"db.max_open":             "INVOICEOCR_DB_MAX_OPEN",
		"db.max_idle":             "INVOICEOCR_DB_MAX_IDLE",
		"db.auto_migrate":         "INVOICEOCR_DB_AUTO_MIGRATE",
		"db.save_retries":         "INVOICEOCR_DB_SAVE_RETRIES",
		"db.save_timeout":         "INVOICEOCR_DB_SAVE_TIMEOUT",
		"ocr.binary":              "INVOICEOCR_OCR_BINARY",
		"ocr.lang":                "INVOICEOCR_OCR_LANG",
		"ocr.tessdata_dir":        "INVOICEOCR_OCR_TESSDATA_DIR",
		"ocr.header_psm":          "INVOICEOCR_OCR_HEADER_PSM",
		"ocr.table_psm":           "INVOICEOCR_OCR_TABLE_PSM",
		"ocr.oem":                 "INVOICEOCR_OCR_OEM",
		"ocr.confidence":          "INVOICEOCR_OCR_CONFIDENCE",
		"ocr.timeout":             "INVOICEOCR_OCR_TIMEOUT",
		"extract.table_split":     "INVOICEOCR_EXTRACT_TABLE_SPLIT",
		"upload.dir":              "INVOICEOCR_UPLOAD_DIR",
		"upload.max_file_size_mb": "INVOICEOCR_UPLOAD_MAX_FILE_SIZE_MB",
		"s3.enabled":              "INVOICEOCR_S3_ENABLED",
		"s3.region":               "INVOICEOCR_S3_REGION",
		"s3.bucket":               "INVOICEOCR_S3_BUCKET",
		"s3.endpoint":             "INVOICEOCR_S3_ENDPOINT",
		"s3.access_key":           "INVOICEOCR_S3_ACCESS_KEY",
		"s3.secret_key":           "INVOICEOCR_S3_SECRET_KEY",
		"s3.presign_expiry":       "INVOICEOCR_S3_PRESIGN_EXPIRY",
		"log.level":               "INVOICEOCR_LOG_LEVEL",
		"log.format":              "INVOICEOCR_LOG_FORMAT",
		"cors.allowed_origins":    "INVOICEOCR_CORS_ALLOWED_ORIGINS",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	// Only flags the user actually passed override; unset flags would
	// otherwise mask the environment with their zero defaults.
	if flags != nil {
		var bindErr error
		flags.Visit(func(f *pflag.Flag) {
			if f.Name == "env-file" || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(f.Name, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("config.Load: binding flags: %w", bindErr)
		}
	}

	cfg := &Config{}

	// PaaS hosts set a PORT env var. Use it if INVOICEOCR_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("INVOICEOCR_SERVER_PORT") == "" && !flagChanged(flags, "server.port") {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Driver:      strings.ToLower(v.GetString("db.driver")),
		Host:        v.GetString("db.host"),
		Port:        v.GetInt("db.port"),
		User:        v.GetString("db.user"),
		Password:    v.GetString("db.password"),
		Name:        v.GetString("db.name"),
		SSLMode:     v.GetString("db.sslmode"),
		Path:        v.GetString("db.path"),
		BusyTimeout: v.GetDuration("db.busy_timeout"),
		MaxOpen:     v.GetInt("db.max_open"),
		MaxIdle:     v.GetInt("db.max_idle"),
		AutoMigrate: v.GetBool("db.auto_migrate"),
		SaveRetries: v.GetInt("db.save_retries"),
		SaveTimeout: v.GetDuration("db.save_timeout"),
	}
	cfg.OCR = OCRConfig{
		Binary:      v.GetString("ocr.binary"),
		Lang:        v.GetString("ocr.lang"),
		TessdataDir: v.GetString("ocr.tessdata_dir"),
		HeaderPSM:   v.GetInt("ocr.header_psm"),
		TablePSM:    v.GetInt("ocr.table_psm"),
		OEM:         v.GetInt("ocr.oem"),
		Confidence:  v.GetBool("ocr.confidence"),
		Timeout:     v.GetDuration("ocr.timeout"),
	}
	cfg.Extract = ExtractConfig{
		TableSplit: v.GetString("extract.table_split"),
	}
	cfg.Upload = UploadConfig{
		Dir:           v.GetString("upload.dir"),
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the application cannot start with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("config: unsupported db.driver %q", c.DB.Driver)
	}
	if c.DB.SaveRetries < 0 {
		return fmt.Errorf("config: db.save_retries must not be negative")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		return fmt.Errorf("config: upload.max_file_size_mb must be positive")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("config: s3.bucket is required when s3.enabled is set")
	}
	return nil
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	f := flags.Lookup(name)
	return f != nil && f.Changed
}
