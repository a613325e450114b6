package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/domain/activity"
	"github.com/medicareplus/portal/internal/http/middlewares"
)

type ActivityStore interface {
	Create(ctx context.Context, a activity.Activity) (activity.Activity, error)
	ListByUser(ctx context.Context, userID string) ([]activity.Activity, error)
}

// ActivitiesHandler records which portal services a patient has used.
type ActivitiesHandler struct {
	store ActivityStore
	log   *slog.Logger
}

func NewActivitiesHandler(store ActivityStore, log *slog.Logger) *ActivitiesHandler {
	return &ActivitiesHandler{store: store, log: log}
}

func (h *ActivitiesHandler) Log(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	var req activity.LogRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	a, err := h.store.Create(cctx, activity.NewFromLogRequest(userID, req))

	if err != nil {
		h.log.Error("activity log failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not record activity")
		return
	}

	ctx.JSON(http.StatusCreated, a)
}

func (h *ActivitiesHandler) List(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	activities, err := h.store.ListByUser(cctx, userID)

	if err != nil {
		h.log.Error("activity list failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not list activities")
		return
	}

	if activities == nil {
		activities = []activity.Activity{}
	}

	ctx.JSON(http.StatusOK, gin.H{"activities": activities})
}
