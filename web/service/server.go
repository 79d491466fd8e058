package service

import (
	"time"

	"lottery-panel/database"
	"lottery-panel/logger"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Status is the panel health snapshot.
type Status struct {
	T        time.Time `json:"-"`
	Cpu      float64   `json:"cpu"`
	CpuCores int       `json:"cpuCores"`
	Mem      struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
	} `json:"mem"`
	Uptime        uint64 `json:"uptime"`
	PendingOutbox int64  `json:"pendingOutbox"`
	Scans         struct {
		Scanned   int64 `json:"scanned"`
		Succeeded int64 `json:"succeeded"`
		Deferred  int64 `json:"deferred"`
	} `json:"scans"`
}

type ServerService struct {
	redemptionService *RedemptionService
}

func NewServerService(redemptionService *RedemptionService) *ServerService {
	return &ServerService{redemptionService: redemptionService}
}

func (s *ServerService) GetStatus(lastStatus *Status) *Status {
	now := time.Now()
	status := &Status{T: now}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		logger.Warning("get cpu percent failed:", err)
	} else if len(percents) > 0 {
		status.Cpu = percents[0]
	}
	status.CpuCores, _ = cpu.Counts(false)

	upTime, err := host.Uptime()
	if err != nil {
		logger.Warning("get uptime failed:", err)
	} else {
		status.Uptime = upTime
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warning("get virtual memory failed:", err)
	} else {
		status.Mem.Current = memInfo.Used
		status.Mem.Total = memInfo.Total
	}

	pending, err := database.CountPendingOutbox()
	if err != nil {
		logger.Warning("get outbox depth failed:", err)
	} else {
		status.PendingOutbox = pending
	}

	if s.redemptionService != nil {
		status.Scans.Scanned, status.Scans.Succeeded, status.Scans.Deferred = s.redemptionService.Stats()
	}

	return status
}
