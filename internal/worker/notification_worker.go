package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/service"
)

const notificationWorkers = 4

// StartNotificationWorker registers notification handlers and starts delivery. The
// returned stop function drains queued notifications.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) func() {
	if notificationService == nil {
		return func() {}
	}
	notificationService.RegisterHandlers()
	notificationService.Start(notificationWorkers)
	if logger != nil {
		logger.Info("notification workers started", zap.Int("workers", notificationWorkers))
	}
	return notificationService.Close
}
