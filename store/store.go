package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"auto_wordpress_post_publisher/publisher"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrDuplicateSite = errors.New("store: site already registered")
)

// Store keeps each user's sites and settings. Writes are last-write-wins.
type Store struct {
	db     *gorm.DB
	sealer *Sealer
	logger *zap.Logger
}

// Open opens (and migrates) the sqlite database at path.
func Open(path string, sealer *Sealer, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.New(zap.NewStdLog(logger.Named("gorm")), gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db, sealer, logger)
}

// New wraps an open database and migrates the schema.
func New(db *gorm.DB, sealer *Sealer, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&siteRecord{}, &settingsRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, sealer: sealer, logger: logger}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListSites returns the user's sites, oldest first.
func (s *Store) ListSites(ctx context.Context, userID string) ([]publisher.Site, error) {
	var records []siteRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	sites := make([]publisher.Site, 0, len(records))
	for i := range records {
		site, err := s.toSite(&records[i])
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func (s *Store) GetSite(ctx context.Context, userID, id string) (publisher.Site, error) {
	rec, err := s.getRecord(s.db.WithContext(ctx), userID, id)
	if err != nil {
		return publisher.Site{}, err
	}
	return s.toSite(rec)
}

func (s *Store) getRecord(tx *gorm.DB, userID, id string) (*siteRecord, error) {
	var rec siteRecord
	err := tx.Where("user_id = ? AND id = ?", userID, id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// AddSite registers a new site and assigns its ID. The same URL can be
// registered once per user.
func (s *Store) AddSite(ctx context.Context, userID string, site publisher.Site) (publisher.Site, error) {
	site.ID = uuid.NewString()
	rec, err := s.toRecord(userID, site)
	if err != nil {
		return publisher.Site{}, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&siteRecord{}).
			Where("user_id = ? AND url = ?", userID, rec.URL).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateSite
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return publisher.Site{}, err
	}
	s.logger.Info("site added", zap.String("user", userID), zap.String("site", rec.URL))
	site.URL = rec.URL
	return site, nil
}

// SaveSite overwrites a stored site.
func (s *Store) SaveSite(ctx context.Context, userID string, site publisher.Site) error {
	rec, err := s.toRecord(userID, site)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := s.getRecord(tx, userID, site.ID)
		if err != nil {
			return err
		}
		rec.CreatedAt = old.CreatedAt
		return tx.Save(rec).Error
	})
}

func (s *Store) DeleteSite(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&siteRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendPost records a freshly published post on the site.
func (s *Store) AppendPost(ctx context.Context, userID, siteID string, post publisher.Post) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.getRecord(tx, userID, siteID)
		if err != nil {
			return err
		}
		rec.Posts = append(rec.Posts, post)
		return tx.Model(rec).Update("posts", rec.Posts).Error
	})
}

// LoadSettings returns the user's settings; a user without a record gets
// zero settings.
func (s *Store) LoadSettings(ctx context.Context, userID string) (Settings, error) {
	var rec settingsRecord
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	key, err := s.sealer.Open(rec.SealedAPIKey)
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		ChatGPTAPIKey: key,
		Model:         rec.Model,
		Temperature:   rec.Temperature,
		MaxTokens:     rec.MaxTokens,
	}, nil
}

func (s *Store) SaveSettings(ctx context.Context, userID string, settings Settings) error {
	key, err := s.sealer.Seal(settings.ChatGPTAPIKey)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Save(&settingsRecord{
		UserID:       userID,
		SealedAPIKey: key,
		Model:        settings.Model,
		Temperature:  settings.Temperature,
		MaxTokens:    settings.MaxTokens,
	}).Error
}

func (s *Store) toRecord(userID string, site publisher.Site) (*siteRecord, error) {
	password, err := s.sealer.Seal(site.Password)
	if err != nil {
		return nil, err
	}
	token, err := s.sealer.Seal(site.Token)
	if err != nil {
		return nil, err
	}
	return &siteRecord{
		ID:             site.ID,
		UserID:         userID,
		URL:            strings.TrimRight(strings.TrimSpace(site.URL), "/"),
		UserName:       site.UserName,
		SealedPassword: password,
		SealedToken:    token,
		TokenExpire:    site.TokenExpire,
		DisplayName:    site.DisplayName,
		UserEmail:      site.UserEmail,
		Name:           site.Name,
		Categories:     datatypes.JSONSlice[publisher.Category](site.Categories),
		Tags:           datatypes.JSONSlice[publisher.Tag](site.Tags),
		Posts:          datatypes.JSONSlice[publisher.Post](site.Posts),
	}, nil
}

func (s *Store) toSite(rec *siteRecord) (publisher.Site, error) {
	password, err := s.sealer.Open(rec.SealedPassword)
	if err != nil {
		return publisher.Site{}, fmt.Errorf("site %s password: %w", rec.ID, err)
	}
	token, err := s.sealer.Open(rec.SealedToken)
	if err != nil {
		return publisher.Site{}, fmt.Errorf("site %s token: %w", rec.ID, err)
	}
	return publisher.Site{
		ID:          rec.ID,
		URL:         rec.URL,
		UserName:    rec.UserName,
		Password:    password,
		Token:       token,
		TokenExpire: rec.TokenExpire,
		DisplayName: rec.DisplayName,
		UserEmail:   rec.UserEmail,
		Name:        rec.Name,
		Categories:  []publisher.Category(rec.Categories),
		Tags:        []publisher.Tag(rec.Tags),
		Posts:       []publisher.Post(rec.Posts),
	}, nil
}
