package controller

import (
	"net/http"

	"lottery-panel/web/session"

	"github.com/gin-gonic/gin"
)

type BaseController struct{}

func (a *BaseController) checkLogin(c *gin.Context) {
	if !session.IsLogin(c) {
		pureJsonMsg(c, http.StatusUnauthorized, false, "login required")
		c.Abort()
	} else {
		c.Next()
	}
}
