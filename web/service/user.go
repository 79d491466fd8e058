package service

import (
	"time"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"

	"github.com/xlzd/gotp"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct{}

func (s *UserService) GetFirstUser() (*model.User, error) {
	db := database.GetDB()
	user := &model.User{}
	err := db.Model(&model.User{}).First(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CheckUser validates credentials plus the TOTP code when two-factor is
// enabled for the account. Legacy plaintext passwords are upgraded to
// bcrypt on first successful login.
func (s *UserService) CheckUser(username, password, totpCode string) *model.User {
	db := database.GetDB()

	user := &model.User{}
	err := db.Model(&model.User{}).Where("username = ?", username).First(user).Error
	if database.IsNotFound(err) {
		return nil
	} else if err != nil {
		logger.Warning("check user err:", err)
		return nil
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		if user.Password != password {
			return nil
		}
		// stored in the clear by an old build; rehash now
		if err := s.UpdateUser(user.Id, username, password); err != nil {
			logger.Warning("rehash password err:", err)
		}
	}

	if user.TotpSecret != "" {
		totp := gotp.NewDefaultTOTP(user.TotpSecret)
		if !totp.Verify(totpCode, time.Now().Unix()) {
			return nil
		}
	}

	return user
}

func (s *UserService) UpdateUser(id int64, username, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	db := database.GetDB()
	return db.Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"username": username, "password": string(hashed)}).
		Error
}

func (s *UserService) UpdateTotpSecret(id int64, secret string) error {
	db := database.GetDB()
	return db.Model(&model.User{}).
		Where("id = ?", id).
		Update("totp_secret", secret).
		Error
}
