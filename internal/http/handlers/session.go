package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/session"
)

type SessionStateSource interface {
	State() session.State
}

// SessionHandler exposes the resolver's current view of the session.
type SessionHandler struct {
	source SessionStateSource
}

func NewSessionHandler(source SessionStateSource) *SessionHandler {
	return &SessionHandler{source: source}
}

func (h *SessionHandler) Current(ctx *gin.Context) {
	st := h.source.State()

	var user gin.H

	if st.UserID != "" {
		user = gin.H{
			"id":    st.UserID,
			"email": st.Email,
		}
	}

	var r *role.Role

	if st.Role != role.None {
		r = &st.Role
	}

	ctx.JSON(http.StatusOK, gin.H{
		"user":    user,
		"role":    r,
		"loading": st.Loading,
	})
}
