package config

import (
	"github.com/joho/godotenv"
	"os"
	"strconv"
	"time"
)

const (
	defaultDatabasePath = "/var/paperstack/data/paperstack.db"
	defaultStorageDir   = "/var/paperstack/data/blobs"
	defaultHTTPAddr     = ":3646"
)

type (
	Config struct {
		// AccessKey is the master access key to the admin API. Must be kept safe and secure!
		AccessKey string

		ServerSSLCertFile, ServerSSLKeyFile string

		HTTPAddr     string
		DatabasePath string
		LogMode      string

		Storage StorageConfig
		SMTP    SMTPConfig
		Backup  BackupConfig
	}

	// StorageConfig describes the blob store. When Endpoint is empty the local
	// file storage rooted at Dir is used instead of object storage.
	StorageConfig struct {
		Endpoint      string
		AccessKeyID   string
		SecretKey     string
		Region        string
		UseSSL        bool
		UploadsBucket string
		BackupsBucket string
		Dir           string
	}

	SMTPConfig struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}

	BackupConfig struct {
		Workers           int
		QueueSize         int
		JobTimeout        time.Duration
		StaleCeiling      time.Duration
		ReconcileInterval time.Duration
		CleanupTime       string
		StagingDir        string
		MinFreeBytes      uint64
	}
)

// New reads the configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func New() Config {
	_ = godotenv.Load()

	return Config{
		AccessKey:         os.Getenv("ACCESS_KEY"),
		ServerSSLCertFile: os.Getenv("SERVER_SSL_CERT_FILE"),
		ServerSSLKeyFile:  os.Getenv("SERVER_SSL_KEY_FILE"),
		HTTPAddr:          getString("HTTP_ADDR", defaultHTTPAddr),
		DatabasePath:      getString("DATABASE_PATH", defaultDatabasePath),
		LogMode:           getString("LOG_MODE", "development"),
		Storage: StorageConfig{
			Endpoint:      os.Getenv("STORAGE_ENDPOINT"),
			AccessKeyID:   os.Getenv("STORAGE_ACCESS_KEY_ID"),
			SecretKey:     os.Getenv("STORAGE_SECRET_KEY"),
			Region:        os.Getenv("STORAGE_REGION"),
			UseSSL:        getBool("STORAGE_USE_SSL", false),
			UploadsBucket: getString("STORAGE_UPLOADS_BUCKET", "papers"),
			BackupsBucket: getString("STORAGE_BACKUPS_BUCKET", "backups"),
			Dir:           getString("STORAGE_DIR", defaultStorageDir),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getString("SMTP_FROM", "no-reply@paperstack.local"),
		},
		Backup: BackupConfig{
			Workers:           getInt("BACKUP_WORKERS", 2),
			QueueSize:         getInt("BACKUP_QUEUE_SIZE", 16),
			JobTimeout:        getDuration("BACKUP_JOB_TIMEOUT", 2*time.Hour),
			StaleCeiling:      getDuration("BACKUP_STALE_CEILING", 15*time.Minute),
			ReconcileInterval: getDuration("BACKUP_RECONCILE_INTERVAL", 5*time.Minute),
			CleanupTime:       getString("BACKUP_CLEANUP_TIME", "03:00"),
			StagingDir:        getString("BACKUP_STAGING_DIR", os.TempDir()),
			MinFreeBytes:      uint64(getInt("BACKUP_MIN_FREE_BYTES", 512<<20)),
		},
	}
}

func (c Config) HasTLSConfig() bool {
	return c.ServerSSLCertFile != "" && c.ServerSSLKeyFile != ""
}

func (c Config) HasObjectStorage() bool {
	return c.Storage.Endpoint != ""
}

func (c Config) HasSMTP() bool {
	return c.SMTP.Host != ""
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
