package database

import (
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"os"
	"path/filepath"
	"paperstack/internal/types"
)

func Open(path string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, errors.Wrap(err, "failed to create DB directory")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open DB: "+path)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the backup tables. The source tables are owned by the
// repository application but are migrated too so a fresh install can boot.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.BackupSettings{},
		&types.BackupJob{},
		&types.Document{},
		&types.User{},
		&types.Staff{}); err != nil {
		return errors.Wrap(err, "failed to migrate DB")
	}
	return nil
}
