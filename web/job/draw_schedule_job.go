package job

import (
	"context"
	"errors"
	"time"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"
	"lottery-panel/web/service"
)

// DrawScheduleJob closes and runs draws whose scheduled time has
// passed. A draw already closed by hand is still run; a due draw with
// no entrants is resolved instead of failing every tick.
type DrawScheduleJob struct {
	drawService *service.DrawService
}

func NewDrawScheduleJob(drawService *service.DrawService) *DrawScheduleJob {
	return &DrawScheduleJob{drawService: drawService}
}

func (j *DrawScheduleJob) Run() {
	due, err := database.ListDueDraws(time.Now())
	if err != nil {
		logger.Warning("list due draws:", err)
		return
	}

	for _, draw := range due {
		if draw.Status == model.DrawOpen {
			if _, err := j.drawService.CloseDraw(draw.Id); err != nil {
				logger.Warningf("close scheduled draw %s: %v", draw.Id, err)
				continue
			}
		}
		if _, err := j.drawService.RunDraw(context.Background(), draw.Id); err != nil {
			if errors.Is(err, service.ErrEmptyPool) {
				if _, rErr := j.drawService.ResolveEmptyDraw(draw.Id); rErr != nil {
					logger.Warningf("resolve empty draw %s: %v", draw.Id, rErr)
				}
				continue
			}
			logger.Warningf("run scheduled draw %s: %v", draw.Id, err)
		}
	}
}
