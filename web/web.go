package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"

	"lottery-panel/config"
	"lottery-panel/logger"
	"lottery-panel/remote"
	"lottery-panel/util/common"
	"lottery-panel/web/controller"
	"lottery-panel/web/global"
	"lottery-panel/web/job"
	"lottery-panel/web/service"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

type Server struct {
	httpServer *http.Server
	listener   net.Listener

	index *controller.IndexController
	api   *controller.APIController

	settingService service.SettingService

	syncClient        remote.SyncClient
	notifyService     *service.NotifyService
	ticketService     *service.TicketService
	redemptionService *service.RedemptionService
	drawService       *service.DrawService
	serverService     *service.ServerService
	tgNotifier        *service.TgNotifier

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:    ctx,
		cancel: cancel,
	}
}

// initServices wires the sync client, the notifier chain and the
// domain services. With no remote endpoint configured the in-process
// store backs the sync client (local mode).
func (s *Server) initServices() {
	baseURL := config.GetRemoteBaseURL()
	timeout := config.GetRemoteTimeout()
	if baseURL != "" {
		s.syncClient = remote.NewHTTPClient(baseURL, timeout)
		logger.Info("remote store:", baseURL)
	} else {
		s.syncClient = remote.NewMemoryStore()
		logger.Info("remote store: local mode (in-process)")
	}

	s.notifyService = service.NewNotifyService()
	if token := config.GetTgBotToken(); token != "" && config.GetTgChatId() != 0 {
		notifier, err := service.NewTgNotifier(token, config.GetTgChatId())
		if err != nil {
			logger.Warning("telegram notifier disabled:", err)
		} else {
			s.tgNotifier = notifier
			s.notifyService.Register(notifier)
			logger.Info("telegram notifier enabled")
		}
	}

	s.ticketService = service.NewTicketService(s.syncClient, s.notifyService, timeout)
	s.redemptionService = service.NewRedemptionService(s.syncClient, s.notifyService, timeout)
	s.drawService = service.NewDrawService(s.syncClient, s.notifyService, timeout)
	s.serverService = service.NewServerService(s.redemptionService)
}

func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	secret, err := s.settingService.GetSecret()
	if err != nil {
		return nil, err
	}

	basePath, err := s.settingService.GetBasePath()
	if err != nil {
		return nil, err
	}

	engine.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{basePath + "panel/api/"})))

	store := cookie.NewStore(secret)
	engine.Use(sessions.Sessions("lottery-panel", store))

	g := engine.Group(basePath)

	s.index = controller.NewIndexController(g)
	s.api = controller.NewAPIController(g, s.ticketService, s.redemptionService, s.drawService, s.serverService)

	return engine, nil
}

func (s *Server) startTask() {
	// replay queued writes whenever connectivity allows
	s.cron.AddJob("@every 15s", job.NewOutboxReplayJob(s.syncClient, s.notifyService))

	// close and run draws whose scheduled time has passed
	s.cron.AddJob("@every 30s", job.NewDrawScheduleJob(s.drawService))

	// watch the pending-sync backlog
	var sender interface{ SendText(string) error }
	if s.tgNotifier != nil {
		sender = s.tgNotifier
	}
	s.cron.AddJob("@every 1m", job.NewOutboxDepthJob(sender))
}

func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			s.Stop()
		}
	}()

	s.cron = cron.New(cron.WithSeconds())
	s.cron.Start()

	s.initServices()

	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(config.GetListen(), strconv.Itoa(config.GetPort()))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	s.listener = listener
	logger.Info("web server running on", listener.Addr())

	s.httpServer = &http.Server{
		Handler: engine,
	}

	go func() {
		s.httpServer.Serve(listener)
	}()

	s.startTask()

	return nil
}

func (s *Server) Stop() error {
	s.cancel()
	if s.cron != nil {
		s.cron.Stop()
	}
	var err1 error
	var err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(s.ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
	}
	return common.Combine(err1, err2)
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}

func (s *Server) GetCron() *cron.Cron {
	return s.cron
}

var _ global.WebServer = (*Server)(nil)
