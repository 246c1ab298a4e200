package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thereceipt/printbridge/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const singleDefaultIndex = "idx_printer_profiles_single_default"

// Store persists printer profiles.
//
// At most one profile is default at any time. Every write that can set the
// flag runs under the store mutex and inside one transaction that clears the
// flag on all other rows first. On sqlite and postgres a partial unique index
// backs this up for writers outside this process.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time

	mu sync.Mutex
}

// NewStore creates a store on db. Call Migrate before first use.
func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:  db,
		log: log.Named("registry"),
		now: time.Now,
	}
}

// Migrate creates the profiles table and the single-default index
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&Profile{}); err != nil {
		return fmt.Errorf("failed to migrate printer profiles: %w", err)
	}

	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s ON printer_profiles (is_default) WHERE is_default",
			singleDefaultIndex,
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create default index: %w", err)
		}
	default:
		s.log.Info("partial indexes unsupported, single default enforced by transactions only",
			zap.String("dialect", db.Dialector.Name()))
	}
	return nil
}

// Create stores a new profile. Unset kind defaults to EPSON and unset transport to USB.
func (s *Store) Create(ctx context.Context, p Profile) (Profile, error) {
	p.ID = 0
	applyDefaults(&p)
	if err := validate(&p); err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.IsDefault {
			if err := s.unsetDefault(tx, 0, now); err != nil {
				return err
			}
		}
		return tx.Create(&p).Error
	})
	if err != nil {
		return Profile{}, wrapWriteErr("create", 0, err)
	}

	s.log.Info("profile created", zap.Uint("id", p.ID), zap.String("name", p.Name), zap.Bool("default", p.IsDefault))
	return p, nil
}

// List returns all profiles, default first, then by id
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	err := s.db.WithContext(ctx).
		Order("is_default DESC").
		Order("id ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list printer profiles: %w", err)
	}
	return profiles, nil
}

// Count returns the number of stored profiles
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Profile{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count printer profiles: %w", err)
	}
	return n, nil
}

// Get returns the profile with id
func (s *Store) Get(ctx context.Context, id uint) (Profile, error) {
	return s.get(s.db.WithContext(ctx), id)
}

// GetDefault returns the default profile or ErrNoDefault
func (s *Store) GetDefault(ctx context.Context) (Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).Where("is_default = ?", true).Order("id ASC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, ErrNoDefault
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load default printer: %w", err)
	}
	return p, nil
}

// Update applies a partial update. Setting isDefault clears it on every other profile.
func (s *Store) Update(ctx context.Context, id uint, patch Patch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.get(tx, id)
		if err != nil {
			return err
		}

		patch.apply(&p)
		if err := validate(&p); err != nil {
			return err
		}

		now := s.now()
		p.UpdatedAt = now
		if p.IsDefault {
			if err := s.unsetDefault(tx, p.ID, now); err != nil {
				return err
			}
		}
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Profile{}, wrapWriteErr("update", id, err)
	}

	s.log.Info("profile updated", zap.Uint("id", id), zap.Bool("default", updated.IsDefault))
	return updated, nil
}

// Delete removes a profile. Deleting the default leaves no default.
func (s *Store) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.WithContext(ctx).Delete(&Profile{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete printer profile %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("printer profile %d: %w", id, ErrNotFound)
	}

	s.log.Info("profile deleted", zap.Uint("id", id))
	return nil
}

// SetDefault makes id the only default profile
func (s *Store) SetDefault(ctx context.Context, id uint) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated Profile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.get(tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.unsetDefault(tx, 0, now); err != nil {
			return err
		}

		p.IsDefault = true
		p.UpdatedAt = now
		if err := tx.Model(&Profile{}).Where("id = ?", id).
			Updates(map[string]any{"is_default": true, "updated_at": now}).Error; err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return Profile{}, wrapWriteErr("set default", id, err)
	}

	s.log.Info("default printer changed", zap.Uint("id", id), zap.String("name", updated.Name))
	return updated, nil
}

func (s *Store) get(db *gorm.DB, id uint) (Profile, error) {
	var p Profile
	err := db.First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Profile{}, fmt.Errorf("printer profile %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load printer profile %d: %w", id, err)
	}
	return p, nil
}

// unsetDefault clears the flag on every profile except keep (0 keeps none)
func (s *Store) unsetDefault(tx *gorm.DB, keep uint, now time.Time) error {
	q := tx.Model(&Profile{}).Where("is_default = ?", true)
	if keep != 0 {
		q = q.Where("id <> ?", keep)
	}
	return q.Updates(map[string]any{"is_default": false, "updated_at": now}).Error
}

func wrapWriteErr(op string, id uint, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidProfile) {
		return err
	}
	subject := "printer profile"
	if id != 0 {
		subject = fmt.Sprintf("printer profile %d", id)
	}
	if database.IsDuplicateKeyErr(err) {
		return fmt.Errorf("failed to %s %s: %w: %w", op, subject, ErrDefaultConflict, err)
	}
	return fmt.Errorf("failed to %s %s: %w", op, subject, err)
}
