package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/domain/account"
	"github.com/medicareplus/portal/internal/http/middlewares"
	"github.com/medicareplus/portal/internal/repo/postgres"
)

type AccountGetter interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

type ProfileGetter interface {
	GetByUserID(ctx context.Context, userID string) (account.Profile, error)
}

// ProfileHandler serves the signed-in user's own account view.
type ProfileHandler struct {
	accounts AccountGetter
	profiles ProfileGetter
	log      *slog.Logger
}

func NewProfileHandler(accounts AccountGetter, profiles ProfileGetter, log *slog.Logger) *ProfileHandler {
	return &ProfileHandler{accounts: accounts, profiles: profiles, log: log}
}

func (h *ProfileHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Authentication required")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	a, err := h.accounts.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, postgres.ErrAccountNotFound) {
			RespondNotFound(ctx, "Account not found")
			return
		}

		h.log.Error("account load failed", "user_id", userID, "err", err)
		RespondInternal(ctx, "Could not load account")
		return
	}

	resp := gin.H{
		"id":    a.ID,
		"email": a.Email,
	}

	if r, ok := middlewares.RoleFromContext(ctx); ok {
		resp["role"] = r
	}

	p, err := h.profiles.GetByUserID(cctx, userID)

	if err == nil {
		resp["fullName"] = p.FullName

		if p.LicenseNumber != nil {
			resp["licenseNumber"] = *p.LicenseNumber
		}

		if p.PatientID != nil {
			resp["patientId"] = *p.PatientID
		}
	} else if !errors.Is(err, postgres.ErrProfileNotFound) {
		h.log.Error("profile load failed", "user_id", userID, "err", err)
	}

	ctx.JSON(http.StatusOK, resp)
}
