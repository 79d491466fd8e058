package controller

import (
	"net/http"

	"lottery-panel/logger"
	"lottery-panel/web/service"
	"lottery-panel/web/session"

	"github.com/gin-gonic/gin"
)

type LoginForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	TotpCode string `json:"totpCode" form:"totpCode"`
}

type IndexController struct {
	BaseController

	userService service.UserService
}

func NewIndexController(g *gin.RouterGroup) *IndexController {
	a := &IndexController{}
	a.initRouter(g)
	return a
}

func (a *IndexController) initRouter(g *gin.RouterGroup) {
	g.POST("/login", a.login)
	g.GET("/logout", a.logout)
}

func (a *IndexController) login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		pureJsonMsg(c, http.StatusOK, false, "invalid login form")
		return
	}
	if form.Username == "" || form.Password == "" {
		pureJsonMsg(c, http.StatusOK, false, "username and password are required")
		return
	}

	user := a.userService.CheckUser(form.Username, form.Password, form.TotpCode)
	if user == nil {
		logger.Warningf("wrong username or password from %s", getRemoteIp(c))
		pureJsonMsg(c, http.StatusOK, false, "wrong username, password or code")
		return
	}

	logger.Infof("%s logged in from %s", form.Username, getRemoteIp(c))
	jsonMsg(c, "login", session.SetLoginUser(c, user))
}

func (a *IndexController) logout(c *gin.Context) {
	jsonMsg(c, "logout", session.ClearSession(c))
}

func getRemoteIp(c *gin.Context) string {
	value := c.GetHeader("X-Real-IP")
	if value != "" {
		return value
	}
	return c.ClientIP()
}
