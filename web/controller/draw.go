package controller

import (
	"time"

	"lottery-panel/web/service"

	"github.com/gin-gonic/gin"
)

type DrawForm struct {
	Name        string     `json:"name" form:"name"`
	Policy      string     `json:"policy" form:"policy"`
	WinnerCount int        `json:"winnerCount" form:"winnerCount"`
	MaxEntries  int        `json:"maxEntries" form:"maxEntries"`
	Lat         float64    `json:"lat" form:"lat"`
	Lng         float64    `json:"lng" form:"lng"`
	ScheduledAt *time.Time `json:"scheduledAt" form:"scheduledAt"`
}

type DrawController struct {
	drawService *service.DrawService
}

func NewDrawController(g *gin.RouterGroup, drawService *service.DrawService) *DrawController {
	a := &DrawController{drawService: drawService}
	a.initRouter(g)
	return a
}

func (a *DrawController) initRouter(g *gin.RouterGroup) {
	g.POST("/create", a.create)
	g.GET("/list", a.list)
	g.GET("/locations", a.locations)
	g.GET("/:id", a.get)
	g.POST("/:id/close", a.close)
	g.POST("/:id/run", a.run)
	g.POST("/:id/replacement", a.replacement)
}

func (a *DrawController) create(c *gin.Context) {
	var form DrawForm
	if err := c.ShouldBind(&form); err != nil {
		jsonMsg(c, "create draw", err)
		return
	}
	draw, err := a.drawService.CreateDraw(form.Name, form.Policy, form.WinnerCount,
		form.MaxEntries, form.Lat, form.Lng, form.ScheduledAt)
	jsonObj(c, draw, err)
}

func (a *DrawController) list(c *gin.Context) {
	draws, err := a.drawService.ListDraws()
	jsonObj(c, draws, err)
}

func (a *DrawController) locations(c *gin.Context) {
	locations, err := a.drawService.ListDrawLocations()
	jsonObj(c, locations, err)
}

func (a *DrawController) get(c *gin.Context) {
	draw, err := a.drawService.GetDraw(c.Param("id"))
	jsonObj(c, draw, err)
}

func (a *DrawController) close(c *gin.Context) {
	draw, err := a.drawService.CloseDraw(c.Param("id"))
	jsonObj(c, draw, err)
}

func (a *DrawController) run(c *gin.Context) {
	draw, err := a.drawService.RunDraw(c.Request.Context(), c.Param("id"))
	jsonObj(c, draw, err)
}

func (a *DrawController) replacement(c *gin.Context) {
	ticket, err := a.drawService.DrawReplacement(c.Request.Context(), c.Param("id"))
	jsonObj(c, ticket, err)
}
