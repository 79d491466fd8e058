package controller

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"lottery-panel/config"
	"lottery-panel/database"
	"lottery-panel/logger"
	"lottery-panel/web/global"
	"lottery-panel/web/service"

	"github.com/gin-gonic/gin"
)

type ServerController struct {
	BaseController

	serverService *service.ServerService

	lastStatus        *service.Status
	lastGetStatusTime time.Time
}

func NewServerController(g *gin.RouterGroup, serverService *service.ServerService) *ServerController {
	a := &ServerController{
		serverService:     serverService,
		lastGetStatusTime: time.Now(),
	}
	a.initRouter(g)
	a.startTask()
	return a
}

func (a *ServerController) initRouter(g *gin.RouterGroup) {
	g.GET("/status", a.status)
	g.GET("/getDb", a.getDb)
	g.GET("/notifications", a.notifications)
	g.POST("/logs/:count", a.getLogs)
	g.POST("/importDB", a.importDB)
}

func (a *ServerController) refreshStatus() {
	a.lastStatus = a.serverService.GetStatus(a.lastStatus)
}

func (a *ServerController) startTask() {
	webServer := global.GetWebServer()
	if webServer == nil {
		return
	}
	c := webServer.GetCron()
	c.AddFunc("@every 2s", func() {
		now := time.Now()
		// stop refreshing once nobody has asked for a while
		if now.Sub(a.lastGetStatusTime) > time.Minute*3 {
			return
		}
		a.refreshStatus()
	})
}

func (a *ServerController) status(c *gin.Context) {
	a.lastGetStatusTime = time.Now()
	if a.lastStatus == nil {
		a.refreshStatus()
	}
	jsonObj(c, a.lastStatus, nil)
}

func (a *ServerController) getLogs(c *gin.Context) {
	count, err := strconv.Atoi(c.Param("count"))
	if err != nil {
		count = 100
	}
	level := c.DefaultPostForm("level", "info")
	logs := logger.GetLogs(count, level)
	jsonObj(c, logs, nil)
}

func (a *ServerController) notifications(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	logs, err := database.ListNotificationLogs(limit)
	jsonObj(c, logs, err)
}

// getDb checkpoints and downloads the sqlite file for backup.
func (a *ServerController) getDb(c *gin.Context) {
	if err := database.Checkpoint(); err != nil {
		jsonMsg(c, "checkpoint database", err)
		return
	}
	db, err := os.ReadFile(config.GetDBPath())
	if err != nil {
		jsonMsg(c, "read database", err)
		return
	}
	filename := fmt.Sprintf("%s-%s.db", config.GetName(), time.Now().Format("2006-01-02"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/octet-stream", db)
}

// importDB replaces the local cache with an uploaded backup.
func (a *ServerController) importDB(c *gin.Context) {
	file, _, err := c.Request.FormFile("db")
	if err != nil {
		jsonMsg(c, "read upload", err)
		return
	}
	defer file.Close()

	ok, err := database.IsSQLiteDB(file)
	if err != nil {
		jsonMsg(c, "validate upload", err)
		return
	}
	if !ok {
		jsonMsg(c, "validate upload", fmt.Errorf("not a sqlite database file"))
		return
	}

	if err := database.ImportDB(file); err != nil {
		jsonMsg(c, "import database", err)
		return
	}
	jsonMsg(c, "import database", nil)
}
