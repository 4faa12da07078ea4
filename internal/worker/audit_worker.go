package worker

import (
	"github.com/spec-kit/session-gate/internal/service"
)

// StartAuditWorker registers audit handlers and returns their cleanup.
func StartAuditWorker(auditService *service.AuditService) func() {
	if auditService == nil {
		return func() {}
	}
	return auditService.RegisterHandlers()
}
