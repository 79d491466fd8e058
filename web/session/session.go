package session

import (
	"lottery-panel/database/model"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const loginUserKey = "LOGIN_USER"

func SetLoginUser(c *gin.Context, user *model.User) error {
	if user == nil {
		return nil
	}
	s := sessions.Default(c)
	s.Set(loginUserKey, user.Id)
	return s.Save()
}

func GetLoginUserId(c *gin.Context) int64 {
	s := sessions.Default(c)
	if v, ok := s.Get(loginUserKey).(int64); ok {
		return v
	}
	return 0
}

func IsLogin(c *gin.Context) bool {
	return GetLoginUserId(c) > 0
}

func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}
