package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrLicenseNotFound is returned when no record matches a serial.
var ErrLicenseNotFound = errors.New("license not found")

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&License{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertLicense inserts a record or refreshes the one sharing its serial.
// On return l holds the stored row, including its persisted ID.
func (d *Database) UpsertLicense(l *License) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return upsertLicense(d.gorm, l)
}

// UpsertLicenses writes all records in one transaction; a failure stores none of them.
func (d *Database) UpsertLicenses(records []License) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		for i := range records {
			if err := upsertLicense(tx, &records[i]); err != nil {
				return fmt.Errorf("store %s: %w", records[i].SerialNumber, err)
			}
		}
		return nil
	})
}

func upsertLicense(tx *gorm.DB, l *License) error {
	if l == nil {
		return errors.New("license is nil")
	}
	l.SerialNumber = strings.TrimSpace(l.SerialNumber)
	if l.SerialNumber == "" {
		return errors.New("license serial is empty")
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_name", "plan_type", "start_date", "expiry_date", "status", "notes", "updated_at"}),
	}).Create(l).Error
	if err != nil {
		return err
	}
	// the conflict path keeps the existing id, so read the row back
	var stored License
	if err := tx.Where("serial_number = ?", l.SerialNumber).Take(&stored).Error; err != nil {
		return err
	}
	*l = stored
	return nil
}

// FindLicenseBySerial returns the record for serial or ErrLicenseNotFound.
func (d *Database) FindLicenseBySerial(serial string) (*License, error) {
	if d == nil {
		return nil, errors.New("database is nil")
	}
	var l License
	err := d.gorm.Where("serial_number = ?", strings.TrimSpace(serial)).Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLicenseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// MarkLicenseExpired flips a record's status to expired.
func (d *Database) MarkLicenseExpired(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&License{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusExpired,
			"updated_at": time.Now(),
		}).Error
}

// CountLicenses returns the number of stored records.
func (d *Database) CountLicenses() (int64, error) {
	var count int64
	if err := d.gorm.Model(&License{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_licenses_status_expiry ON licenses(status, expiry_date)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
