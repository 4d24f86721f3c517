package database

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MessageRepository provides the decoded message journal
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository instance
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert appends one record
func (r *MessageRepository) Insert(rec *MessageRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if !rec.IsValid() {
		return fmt.Errorf("record is not valid: protocol=%q payload=%q", rec.ProtocolID, rec.Payload)
	}
	return r.db.Create(rec).Error
}

// Count returns the number of journaled messages
func (r *MessageRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&MessageRecord{}).Count(&count).Error
	return count, err
}

// CountByProtocol returns the message count per protocol id
func (r *MessageRepository) CountByProtocol() (map[string]int64, error) {
	var rows []struct {
		ProtocolID string
		Count      int64
	}
	err := r.db.Model(&MessageRecord{}).
		Select("protocol_id, COUNT(*) as count").
		Group("protocol_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ProtocolID] = row.Count
	}
	return out, nil
}

// Recent returns the newest messages first
func (r *MessageRepository) Recent(limit int) ([]MessageRecord, error) {
	var recs []MessageRecord
	err := r.db.Order("received_at DESC, id DESC").Limit(limit).Find(&recs).Error
	return recs, err
}

// DeleteBefore removes messages received before t and returns how many
func (r *MessageRepository) DeleteBefore(t time.Time) (int64, error) {
	res := r.db.Where("received_at < ?", t.UTC()).Delete(&MessageRecord{})
	return res.RowsAffected, res.Error
}
