package controller

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"lottery-panel/web/service"

	"github.com/gin-gonic/gin"
)

type IssueForm struct {
	DrawId   string `json:"drawId" form:"drawId"`
	OwnerRef string `json:"ownerRef" form:"ownerRef"`
}

type EnterForm struct {
	Lat float64 `json:"lat" form:"lat"`
	Lng float64 `json:"lng" form:"lng"`
}

type ScanForm struct {
	Payload   string `json:"payload" form:"payload"`
	ScannerId string `json:"scannerId" form:"scannerId"`
}

type TicketController struct {
	ticketService     *service.TicketService
	redemptionService *service.RedemptionService
}

func NewTicketController(g *gin.RouterGroup, ticketService *service.TicketService, redemptionService *service.RedemptionService) *TicketController {
	a := &TicketController{
		ticketService:     ticketService,
		redemptionService: redemptionService,
	}
	a.initRouter(g)
	return a
}

func (a *TicketController) initRouter(g *gin.RouterGroup) {
	g.POST("/issue", a.issue)
	g.POST("/scan", a.scan)
	g.POST("/:id/enter", a.enter)
	g.POST("/:id/void", a.void)
	g.GET("/:id", a.get)
	g.GET("/:id/qr", a.qr)
	g.GET("/list/:drawId", a.list)
	g.GET("/export/:drawId", a.export)
	g.GET("/locations/:drawId", a.locations)
}

func (a *TicketController) issue(c *gin.Context) {
	var form IssueForm
	if err := c.ShouldBind(&form); err != nil {
		jsonMsg(c, "issue ticket", err)
		return
	}
	ticket, err := a.ticketService.Issue(c.Request.Context(), form.DrawId, form.OwnerRef)
	jsonObj(c, ticket, err)
}

// scan is the redemption entry point: the raw scanned payload goes in,
// the coordinator's outcome comes out. Business rejections are data,
// not HTTP errors.
func (a *TicketController) scan(c *gin.Context) {
	var form ScanForm
	if err := c.ShouldBind(&form); err != nil {
		jsonMsg(c, "scan", err)
		return
	}
	outcome := a.redemptionService.Redeem(c.Request.Context(), service.ScanEvent{
		Payload:   []byte(form.Payload),
		ScannerId: form.ScannerId,
		At:        time.Now(),
	})
	jsonObj(c, outcome, outcome.Err)
}

func (a *TicketController) enter(c *gin.Context) {
	var form EnterForm
	if err := c.ShouldBind(&form); err != nil {
		jsonMsg(c, "enter draw", err)
		return
	}
	ticket, err := a.ticketService.Enter(c.Request.Context(), c.Param("id"), form.Lat, form.Lng)
	jsonObj(c, ticket, err)
}

func (a *TicketController) void(c *gin.Context) {
	ticket, err := a.ticketService.VoidTicket(c.Request.Context(), c.Param("id"))
	jsonObj(c, ticket, err)
}

func (a *TicketController) get(c *gin.Context) {
	ticket, err := a.ticketService.GetTicket(c.Request.Context(), c.Param("id"))
	jsonObj(c, ticket, err)
}

// qr renders the ticket's scannable symbol as a PNG.
func (a *TicketController) qr(c *gin.Context) {
	ticket, err := a.ticketService.GetTicket(c.Request.Context(), c.Param("id"))
	if err != nil {
		jsonMsg(c, "get ticket", err)
		return
	}
	size := 256
	if v := c.Query("size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}
	png, err := a.ticketService.TicketQR(ticket.Id, size)
	if err != nil {
		jsonMsg(c, "render qr", err)
		return
	}
	c.Data(200, "image/png", png)
}

func (a *TicketController) list(c *gin.Context) {
	tickets, err := a.ticketService.ListTickets(c.Param("drawId"))
	jsonObj(c, tickets, err)
}

// export streams the draw's tickets as CSV for the export
// collaborator; the core contributes the rows, nothing else.
func (a *TicketController) export(c *gin.Context) {
	drawId := c.Param("drawId")
	tickets, err := a.ticketService.ListTickets(drawId)
	if err != nil {
		jsonMsg(c, "export tickets", err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="tickets-%s.csv"`, drawId))

	w := csv.NewWriter(c.Writer)
	w.Write([]string{"id", "drawId", "ownerRef", "state", "version", "redeemedBy", "redeemedAt"})
	for _, t := range tickets {
		redeemedAt := ""
		if t.RedeemedAt != nil {
			redeemedAt = t.RedeemedAt.Format(time.RFC3339)
		}
		w.Write([]string{
			t.Id,
			t.DrawId,
			t.OwnerRef,
			string(t.State),
			strconv.FormatInt(t.Version, 10),
			t.RedeemedBy,
			redeemedAt,
		})
	}
	w.Flush()
}

func (a *TicketController) locations(c *gin.Context) {
	locations, err := a.ticketService.ListEntryLocations(c.Param("drawId"))
	jsonObj(c, locations, err)
}
