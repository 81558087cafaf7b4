package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/progression-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureProgressionIndexes adds what gorm tags cannot express.
func EnsureProgressionIndexes(db *gorm.DB) error {
	// At most one equipped item per category per actor.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_inventory_equipped_category
		ON inventory_item (user_id, category)
		WHERE is_equipped = true;
	`).Error; err != nil {
		return fmt.Errorf("create idx_inventory_equipped_category: %w", err)
	}

	// Best score per game type for game_score criteria.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_event_user_game_score
		ON activity_event (user_id, game_type, score);
	`).Error; err != nil {
		return fmt.Errorf("create idx_activity_event_user_game_score: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_mission_user_open
		ON mission (user_id, period_key)
		WHERE is_completed = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_mission_user_open: %w", err)
	}

	if db.Dialector.Name() != DriverPostgres {
		return nil
	}

	// coins >= 0 backs the guarded debit in the ledger.
	if err := db.Exec(`
		DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_user_progress_coins_nonneg') THEN
				ALTER TABLE user_progress ADD CONSTRAINT chk_user_progress_coins_nonneg CHECK (coins >= 0);
			END IF;
		END $$;
	`).Error; err != nil {
		return fmt.Errorf("create chk_user_progress_coins_nonneg: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...", "driver", s.driver)
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureProgressionIndexes(s.db); err != nil {
		s.log.Error("Index migration failed", "error", err)
		return err
	}
	return nil
}
