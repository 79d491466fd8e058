package job

import (
	"fmt"
	"time"

	"lottery-panel/config"
	"lottery-panel/database"
	"lottery-panel/logger"
)

type textSender interface {
	SendText(msg string) error
}

// OutboxDepthJob watches the pending-sync backlog. A backlog past the
// configured threshold is a visible "pending sync" condition, not an
// error; repeated warnings are rate limited.
type OutboxDepthJob struct {
	sender         textSender
	lastNotifyTime time.Time
}

func NewOutboxDepthJob(sender textSender) *OutboxDepthJob {
	return &OutboxDepthJob{sender: sender}
}

func (j *OutboxDepthJob) Run() {
	threshold := config.GetOutboxThreshold()
	notifyInterval := 10 * time.Minute

	depth, err := database.CountPendingOutbox()
	if err != nil {
		logger.Warning("get outbox depth:", err)
		return
	}
	if depth < threshold {
		return
	}

	logger.Warningf("outbox backlog: %d writes pending sync", depth)

	now := time.Now()
	if j.sender == nil || now.Sub(j.lastNotifyTime) < notifyInterval {
		return
	}
	msg := fmt.Sprintf("⚠️ %d ticket writes are pending sync; the remote store may be unreachable.", depth)
	if err := j.sender.SendText(msg); err != nil {
		logger.Warning("send backlog warning:", err)
		return
	}
	j.lastNotifyTime = now
}
