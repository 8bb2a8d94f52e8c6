// store/gorm.go
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/matchserver/models"
)

// UserModel is one credential row.
type UserModel struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	CreatedAt time.Time
}

func (UserModel) TableName() string { return "users" }

// ResultModel is one append-only ledger row.
type ResultModel struct {
	ID        uint   `gorm:"primaryKey"`
	Username  string `gorm:"index;not null"`
	Outcome   string `gorm:"not null"`
	CreatedAt time.Time
}

func (ResultModel) TableName() string { return "results" }

// GormStore is the ORM-backed PostgreSQL store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&UserModel{}, &ResultModel{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) UserExists(name string) (bool, error) {
	var count int64
	err := s.db.Model(&UserModel{}).Where("username = ?", name).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) ValidateLogin(name, pass string) (bool, error) {
	var user UserModel
	err := s.db.Where("username = ? AND password = ?", name, pass).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *GormStore) RegisterUser(name, pass string) error {
	user := UserModel{Username: name, Password: pass}
	err := s.db.Create(&user).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrUserExists
	}
	return err
}

func (s *GormStore) AppendResult(name string, outcome models.Outcome) error {
	if !outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOutcome, outcome)
	}
	return s.db.Create(&ResultModel{Username: name, Outcome: string(outcome)}).Error
}

func (s *GormStore) Leaderboard(limit int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := s.db.Raw(
		`SELECT username,
		        COUNT(*) FILTER (WHERE outcome = 'WIN')  AS wins,
		        COUNT(*) FILTER (WHERE outcome = 'LOSS') AS losses,
		        COUNT(*) FILTER (WHERE outcome = 'DRAW') AS draws
		 FROM results
		 GROUP BY username
		 ORDER BY MIN(id)`,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return rankEntries(entries, limit), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
