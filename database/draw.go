package database

import (
	"time"

	"lottery-panel/database/model"

	"gorm.io/gorm"
)

func GetDraw(id string) (*model.Draw, error) {
	var draw model.Draw
	err := db.Where("id = ?", id).First(&draw).Error
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &draw, nil
}

func SaveDraw(draw *model.Draw) error {
	return db.Save(draw).Error
}

func CreateDraw(draw *model.Draw) error {
	return db.Create(draw).Error
}

func ListDraws() ([]*model.Draw, error) {
	var draws []*model.Draw
	err := db.Order("created_at desc").Find(&draws).Error
	if err != nil {
		return nil, err
	}
	return draws, nil
}

// ListDueDraws returns not-yet-drawn draws whose scheduled time has
// passed. Closed draws are included so a manual close does not take a
// draw off the schedule.
func ListDueDraws(now time.Time) ([]*model.Draw, error) {
	var draws []*model.Draw
	err := db.Where("status in ? and scheduled_at is not null and scheduled_at <= ?",
		[]model.DrawStatus{model.DrawOpen, model.DrawClosed}, now).
		Find(&draws).Error
	if err != nil {
		return nil, err
	}
	return draws, nil
}

// AddNotificationLog appends one emitted state-change event, trimming
// the log to the most recent 10000 rows in the same transaction.
func AddNotificationLog(entry *model.NotificationLog) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&model.NotificationLog{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 10000 {
			limit := int(count) - 10000
			var stale []model.NotificationLog
			if err := tx.Order("created_at asc").Limit(limit).Find(&stale).Error; err != nil {
				return err
			}
			if len(stale) > 0 {
				if err := tx.Delete(&stale).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func ListNotificationLogs(limit int) ([]*model.NotificationLog, error) {
	var logs []*model.NotificationLog
	err := db.Order("created_at desc").Limit(limit).Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
