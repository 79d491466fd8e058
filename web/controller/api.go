package controller

import (
	"lottery-panel/web/service"

	"github.com/gin-gonic/gin"
)

type APIController struct {
	BaseController

	ticketController *TicketController
	drawController   *DrawController
	serverController *ServerController
}

func NewAPIController(g *gin.RouterGroup, ticketService *service.TicketService,
	redemptionService *service.RedemptionService, drawService *service.DrawService,
	serverService *service.ServerService,
) *APIController {
	a := &APIController{}
	a.initRouter(g, ticketService, redemptionService, drawService, serverService)
	return a
}

func (a *APIController) initRouter(g *gin.RouterGroup, ticketService *service.TicketService,
	redemptionService *service.RedemptionService, drawService *service.DrawService,
	serverService *service.ServerService,
) {
	api := g.Group("/panel/api")
	api.Use(a.checkLogin)

	a.ticketController = NewTicketController(api.Group("/tickets"), ticketService, redemptionService)
	a.drawController = NewDrawController(api.Group("/draws"), drawService)
	a.serverController = NewServerController(api.Group("/server"), serverService)
}
