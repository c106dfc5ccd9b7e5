package services

import (
	"debate-arena-system/models"

	"gorm.io/gorm"
)

// BattleRecordStore persists finished-battle records to postgres.
type BattleRecordStore struct {
	DB *gorm.DB
}

func NewBattleRecordStore(db *gorm.DB) *BattleRecordStore {
	return &BattleRecordStore{DB: db}
}

func (s *BattleRecordStore) AppendBattleRecord(rec *models.BattleRecord) error {
	return s.DB.Create(rec).Error
}

// HistoryFor returns a user's most recent battle records.
func (s *BattleRecordStore) HistoryFor(externalUserID string, limit int) ([]models.BattleRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var records []models.BattleRecord
	err := s.DB.
		Where("external_user_id = ?", externalUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
