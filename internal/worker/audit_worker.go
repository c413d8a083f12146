package worker

import (
	"github.com/spec-kit/session-service/internal/audit"
)

// StartAuditWorker registers audit handlers.
func StartAuditWorker(recorder *audit.Recorder) {
	if recorder == nil {
		return
	}
	recorder.RegisterHandlers()
}
