package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	open   gorm.Dialector
	db     *gorm.DB
	logger logger.Interface
}

func New(dbType, dbConn string, debug bool) (*Store, error) {
	var open gorm.Dialector
	switch dbType {
	case "postgres":
		open = postgres.Open(dbConn)
	case "mysql":
		open = mysql.Open(dbConn)
	case "sqlite":
		open = sqlite.Open(dbConn)
	default:
		return nil, fmt.Errorf("storage: unknown db type: %s", dbType)
	}
	l := logger.Default.LogMode(logger.Silent)
	if debug {
		l = logger.Default.LogMode(logger.Warn)
	}
	return &Store{
		open:   open,
		logger: l,
	}, nil
}

func (s *Store) Start(ctx context.Context) error {
	// Open the connection in a goroutine so we can time out
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	errC := make(chan error, 1)
	go func() {
		db, err := gorm.Open(s.open, &gorm.Config{
			Logger: s.logger,
		})
		if err != nil {
			errC <- fmt.Errorf("storage: failed to open database: %w", err)
			return
		}
		s.db = db
		errC <- nil
	}()
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("storage: timed out opening database: %w", ctx.Err())
		}
		return ctx.Err()
	case err := <-errC:
		return err
	}
}

func (s *Store) Stop() error {
	if s.db == nil {
		return nil
	}
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("storage: couldn't get sql db: %w", err)
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("storage: couldn't close database: %w", err)
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	init := !s.db.Migrator().HasTable(&User{})

	if err := s.db.AutoMigrate(
		&User{},
		&Mood{},
		&ListeningTime{},
		&Preference{},
		&MoodEntry{},
		&Generation{},
		&Setting{},
		&RevokedToken{},
	); err != nil {
		return fmt.Errorf("storage: failed to migrate database: %w", err)
	}

	if err := s.customMigrate(init); err != nil {
		return err
	}
	return nil
}

// Migration holds the version of the last applied custom migration.
type Migration struct {
	ID        string `gorm:"primarykey"`
	CreatedAt int64
	UpdatedAt int64

	Version int `gorm:"not null;default:0"`
}

// Version returns the applied custom migration version.
func (s *Store) Version(ctx context.Context) (int, error) {
	var m Migration
	if err := s.db.WithContext(ctx).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("storage: failed to get migration version: %w", err)
	}
	return m.Version, nil
}

func (s *Store) customMigrate(init bool) error {
	lastVersion := 1

	if !s.db.Migrator().HasTable(&Migration{}) {
		if err := s.db.Migrator().CreateTable(&Migration{}); err != nil {
			return fmt.Errorf("storage: failed to create table migrations: %w", err)
		}
		if err := s.db.Save(&Migration{ID: ulid.Make().String()}).Error; err != nil {
			return fmt.Errorf("storage: failed to save migration version: %w", err)
		}
	}

	var migration Migration
	if err := s.db.First(&migration).Error; err != nil {
		return fmt.Errorf("storage: failed to get migration version: %w", err)
	}

	for i := migration.Version + 1; i <= lastVersion; i++ {
		switch i {
		case 1:
			log.Printf("storage: migration 1: seed moods and listening times (init %v)\n", init)
			for _, name := range MoodNames {
				if err := s.db.FirstOrCreate(&Mood{}, Mood{ID: name, Name: name}).Error; err != nil {
					return fmt.Errorf("storage: migration %d: %w", i, err)
				}
			}
			for _, name := range ListeningTimeNames {
				if err := s.db.FirstOrCreate(&ListeningTime{}, ListeningTime{ID: name, Name: name}).Error; err != nil {
					return fmt.Errorf("storage: migration %d: %w", i, err)
				}
			}
		}
		migration.Version = i
		if err := s.db.Save(&migration).Error; err != nil {
			return fmt.Errorf("storage: failed to save migration version: %w", err)
		}
	}
	return nil
}

type Filter struct {
	Query interface{}
	Args  []interface{}
}

func Where(query interface{}, args ...interface{}) Filter {
	return Filter{
		Query: query,
		Args:  args,
	}
}

func paginate(q *gorm.DB, page, size int) *gorm.DB {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 100
	}
	return q.Offset((page - 1) * size).Limit(size)
}
