package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/session-service/internal/repository"
)

// Recorder logs auth events and persists them to the audit trail.
type Recorder struct {
	dispatcher Dispatcher
	events     repository.AuthEventRepository
	logger     *zap.Logger
}

// NewRecorder creates the recorder. The repository may be nil when no
// database is configured; events are then logged only.
func NewRecorder(dispatcher Dispatcher, events repository.AuthEventRepository, logger *zap.Logger) *Recorder {
	return &Recorder{
		dispatcher: dispatcher,
		events:     events,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to auth events.
func (r *Recorder) RegisterHandlers() {
	if r.dispatcher == nil {
		return
	}
	r.dispatcher.Subscribe(EventSessionCreated, r.handle)
	r.dispatcher.Subscribe(EventSessionRejected, r.handle)
	r.dispatcher.Subscribe(EventSessionDestroyed, r.handle)
}

func (r *Recorder) handle(ctx context.Context, event Event) error {
	r.logger.Info("auth event",
		zap.String("type", string(event.Type)),
		zap.String("subject", event.Subject),
		zap.String("session_id", event.SessionID),
		zap.String("reason", event.Reason))

	if r.events == nil {
		return nil
	}

	record := &repository.AuthEvent{
		ID:        event.ID,
		Type:      string(event.Type),
		Subject:   event.Subject,
		SessionID: event.SessionID,
		Reason:    event.Reason,
	}
	if err := r.events.Insert(ctx, record); err != nil {
		r.logger.Warn("failed to persist auth event", zap.Error(err))
	}
	return nil
}
