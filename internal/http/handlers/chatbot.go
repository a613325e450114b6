package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medicareplus/portal/internal/chat"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/observability"
)

// ChatbotHandler fronts the upstream AI gateway. Its wire contract is fixed
// by the web client: plain {message}, {requiresAuth, message} and {error}
// bodies, never the API error envelope.
type ChatbotHandler struct {
	completer chat.Completer
	prom      *observability.Prom
	log       *slog.Logger
}

func NewChatbotHandler(completer chat.Completer, prom *observability.Prom, log *slog.Logger) *ChatbotHandler {
	return &ChatbotHandler{completer: completer, prom: prom, log: log}
}

type ChatbotRequest struct {
	Messages        []chat.Message `json:"messages" binding:"required,min=1,dive"`
	IsAuthenticated bool           `json:"isAuthenticated"`
}

func (h *ChatbotHandler) Chat(ctx *gin.Context) {
	// the client renders raw error bodies, so a panic must still produce
	// a well-formed JSON response
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("chatbot handler panicked", "panic", r)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred. Please try again."})
		}
	}()

	var req ChatbotRequest

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if h.requiresAuth(req) {
		h.observeGate("auth_required")
		ctx.JSON(http.StatusOK, gin.H{
			"requiresAuth": true,
			"message":      chat.AuthPrompt,
		})
		return
	}

	h.observeGate("forwarded")

	cctx, cancel := config.WithTimeout(30 * time.Second)
	defer cancel()

	reply, err := h.completer.Complete(cctx, req.Messages)

	if err != nil {
		h.respondUpstreamError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": reply})
}

// requiresAuth gates on the latest user-authored message only; earlier
// turns were already answered.
func (h *ChatbotHandler) requiresAuth(req ChatbotRequest) bool {
	if req.IsAuthenticated {
		return false
	}

	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return chat.NeedsPersonalization(req.Messages[i].Content)
		}
	}

	return false
}

func (h *ChatbotHandler) respondUpstreamError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrRateLimited):
		ctx.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again in a moment."})

	case errors.Is(err, chat.ErrQuotaExceeded):
		ctx.JSON(http.StatusPaymentRequired, gin.H{"error": "AI usage quota exceeded. Please contact support."})

	case errors.Is(err, chat.ErrCircuitOpen):
		ctx.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Please try again in a moment."})

	default:
		h.log.Error("chat upstream failed", "err", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "An unexpected error occurred. Please try again."})
	}
}

func (h *ChatbotHandler) observeGate(decision string) {
	if h.prom == nil {
		return
	}

	h.prom.ChatGateDecisions.WithLabelValues(decision).Inc()
}
