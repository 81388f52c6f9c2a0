package rulesource

import (
	"context"

	"changeprop/internal/logger"
	"changeprop/pkg/models"
)

// ReloadHandler satisfies broker.HandlerFunc's shape so a reload can be
// triggered by a message on rule_source.config_update_topic, the same
// way the teacher's config_handler.Handler reacts to a config-update
// event instead of polling. The event's payload is ignored — its
// arrival is the signal, not its content.
type ReloadHandler struct {
	manager *Manager
	logger  logger.Logger
}

func NewReloadHandler(manager *Manager, log logger.Logger) *ReloadHandler {
	return &ReloadHandler{manager: manager, logger: log}
}

// Handle matches broker.HandlerFunc: func(ctx, *models.Event) error.
func (h *ReloadHandler) Handle(ctx context.Context, event *models.Event) error {
	h.logger.InfowCtx(ctx, "rule config update received, reloading registry", "request_id", event.Meta.RequestID)
	if err := h.manager.Reload(ctx); err != nil {
		h.logger.ErrorwCtx(ctx, "rule reload failed", "error", err)
		return err
	}
	return nil
}
