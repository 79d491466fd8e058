package service

import (
	"encoding/base64"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/util/common"
)

type SettingService struct{}

func (s *SettingService) getSetting(key string) (string, error) {
	setting := &model.Setting{}
	err := database.GetDB().Where("key = ?", key).First(setting).Error
	if err != nil {
		if database.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return setting.Value, nil
}

func (s *SettingService) saveSetting(key, value string) error {
	db := database.GetDB()
	setting := &model.Setting{}
	err := db.Where("key = ?", key).First(setting).Error
	if database.IsNotFound(err) {
		return db.Create(&model.Setting{Key: key, Value: value}).Error
	} else if err != nil {
		return err
	}
	setting.Value = value
	return db.Save(setting).Error
}

// GetSecret returns the session-cookie secret, generating and
// persisting one on first use.
func (s *SettingService) GetSecret() ([]byte, error) {
	secret, err := s.getSetting("secret")
	if err != nil {
		return nil, err
	}
	if secret == "" {
		secret = base64.StdEncoding.EncodeToString([]byte(common.RandomString(32)))
		if err := s.saveSetting("secret", secret); err != nil {
			return nil, err
		}
	}
	return base64.StdEncoding.DecodeString(secret)
}

func (s *SettingService) GetBasePath() (string, error) {
	basePath, err := s.getSetting("webBasePath")
	if err != nil {
		return "", err
	}
	if basePath == "" {
		return "/", nil
	}
	if basePath[0] != '/' {
		basePath = "/" + basePath
	}
	if basePath[len(basePath)-1] != '/' {
		basePath += "/"
	}
	return basePath, nil
}
