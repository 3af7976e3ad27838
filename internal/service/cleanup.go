package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// sweepTimeout 单次清理的超时时间
const sweepTimeout = time.Minute

// ScheduleCleanup 注册定时清理过期链接的任务，清理失败只记录日志，下个周期会再次执行
func ScheduleCleanup(c *cron.Cron, svc *LinkService, schedule string, logger *zap.Logger) (cron.EntryID, error) {
	return c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		deleted, err := svc.Sweep(ctx)
		if err != nil {
			logger.Error("Failed to clean up expired links", zap.Error(err))
			return
		}
		switch deleted {
		case 0:
			logger.Debug("No expired links to clean up")
		case 1:
			logger.Info("1 link was deleted")
		default:
			logger.Info("Expired links were deleted", zap.Int64("count", deleted))
		}
	})
}
