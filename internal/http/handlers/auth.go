package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/medicareplus/portal/internal/auth"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/domain/account"
	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/identity"
	"github.com/medicareplus/portal/internal/repo/postgres"
	"github.com/medicareplus/portal/internal/session"
)

// CredentialIssuer is the signup/sign-in surface; the interface keeps
// handler tests free of a real store.
type CredentialIssuer interface {
	SignUpPatient(ctx context.Context, email, password, fullName string) (account.Account, error)
	SignUpDoctor(ctx context.Context, licenseNumber, password, fullName string) (account.Account, error)
	SignInPatient(ctx context.Context, email, password string) (account.Account, error)
	SignInDoctor(ctx context.Context, licenseNumber, password string) (account.Account, error)
	RoleForUser(ctx context.Context, userID string) (role.Role, error)
}

type RefreshTokenStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, row postgres.RefreshTokenRow) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (postgres.RefreshTokenRow, error)
	Revoke(ctx context.Context, tx pgx.Tx, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, tx pgx.Tx, userID string) error
}

// SessionPublisher feeds the session event bus the resolver listens on.
type SessionPublisher interface {
	Publish(ctx context.Context, ev session.Event) error
}

type AuthHandler struct {
	issuer       CredentialIssuer
	jwt          *auth.Manager
	refreshStore RefreshTokenStore
	bus          SessionPublisher
	cfg          config.Config
	log          *slog.Logger
}

func NewAuthHandler(issuer CredentialIssuer, jwtManager *auth.Manager, refreshStore RefreshTokenStore, bus SessionPublisher, cfg config.Config, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		issuer:       issuer,
		jwt:          jwtManager,
		refreshStore: refreshStore,
		bus:          bus,
		cfg:          cfg,
		log:          log,
	}
}

type PatientSignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"fullName" binding:"required"`
}

type DoctorSignUpRequest struct {
	LicenseNumber string `json:"licenseNumber" binding:"required"`
	Password      string `json:"password" binding:"required,min=8"`
	FullName      string `json:"fullName" binding:"required"`
}

type PatientLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type DoctorLoginRequest struct {
	LicenseNumber string `json:"licenseNumber" binding:"required"`
	Password      string `json:"password" binding:"required"`
}

func (h *AuthHandler) PatientSignUp(ctx *gin.Context) {
	var req PatientSignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	a, err := h.issuer.SignUpPatient(cctx, req.Email, req.Password, req.FullName)

	if err != nil {
		h.respondIssuerError(ctx, err)
		return
	}

	h.establishSession(ctx, a, role.Patient, http.StatusCreated)
}

func (h *AuthHandler) DoctorSignUp(ctx *gin.Context) {
	var req DoctorSignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	a, err := h.issuer.SignUpDoctor(cctx, req.LicenseNumber, req.Password, req.FullName)

	if err != nil {
		h.respondIssuerError(ctx, err)
		return
	}

	h.establishSession(ctx, a, role.Doctor, http.StatusCreated)
}

func (h *AuthHandler) PatientLogin(ctx *gin.Context) {
	var req PatientLoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	a, err := h.issuer.SignInPatient(cctx, req.Email, req.Password)

	if err != nil {
		h.respondIssuerError(ctx, err)
		return
	}

	h.establishSession(ctx, a, h.lookupRole(cctx, a.ID), http.StatusOK)
}

func (h *AuthHandler) DoctorLogin(ctx *gin.Context) {
	var req DoctorLoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	a, err := h.issuer.SignInDoctor(cctx, req.LicenseNumber, req.Password)

	if err != nil {
		h.respondIssuerError(ctx, err)
		return
	}

	h.establishSession(ctx, a, h.lookupRole(cctx, a.ID), http.StatusOK)
}

// lookupRole resolves the role for token claims. A failed lookup keeps the
// user authenticated but role-less; gating then denies access.
func (h *AuthHandler) lookupRole(ctx context.Context, userID string) role.Role {
	r, err := h.issuer.RoleForUser(ctx, userID)

	if err != nil {
		h.log.Error("role lookup failed during sign-in", "user_id", userID, "err", err)
		return role.None
	}

	return r
}

// establishSession mints the token pair, persists the refresh token,
// announces the sign-in on the session bus and writes the response.
func (h *AuthHandler) establishSession(ctx *gin.Context, a account.Account, r role.Role, status int) {
	accessToken, err := h.jwt.GenerateAccessToken(a.ID, a.Email, r)

	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	rawRefreshToken, jti, expiresAt, err := h.jwt.GenerateRefreshToken(a.ID, a.Email, r)

	if err != nil {
		RespondInternal(ctx, "Could not generate refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err = h.storeRefreshToken(cctx, a.ID, jti, rawRefreshToken, expiresAt)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	h.publish(session.Event{Type: session.SignedIn, UserID: a.ID, Email: a.Email, At: time.Now().UTC()})

	h.setRefreshCookie(ctx, rawRefreshToken, expiresAt)

	ctx.JSON(status, gin.H{
		"accessToken": accessToken,
		"user": gin.H{
			"id":    a.ID,
			"email": a.Email,
			"role":  r,
		},
	})
}

func (h *AuthHandler) respondIssuerError(ctx *gin.Context, err error) {
	var validationErr *identity.ValidationError
	var roleErr *identity.RoleAssignmentError
	var profileErr *identity.ProfileUpdateError

	switch {
	case errors.As(err, &validationErr):
		RespondBadRequest(ctx, validationErr.Error(), nil)

	case errors.Is(err, postgres.ErrEmailAlreadyUsed):
		RespondError(ctx, http.StatusBadRequest, "email_taken", "Email is already in use.", nil)

	case errors.Is(err, identity.ErrDuplicateLicense):
		RespondConflict(ctx, "license_taken", "This license number is already registered.")

	case errors.Is(err, identity.ErrDoctorNotFound):
		RespondError(ctx, http.StatusNotFound, "doctor_not_found",
			"Doctor account not found. Please sign up using a valid license number.", nil)

	case errors.Is(err, identity.ErrInvalidCredentials):
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")

	case errors.As(err, &roleErr), errors.As(err, &profileErr):
		// the account exists but provisioning did not finish; the issuer
		// already logged the gap
		RespondError(ctx, http.StatusInternalServerError, "signup_incomplete",
			"Account was created but could not be fully set up. Please contact support.", nil)

	case errors.Is(err, identity.ErrNoUserReturned):
		RespondInternal(ctx, "Could not create user")

	default:
		RespondInternal(ctx, "Something went wrong")
	}
}

// Refresh rotates the refresh token inside a tx with a row lock.

func (h *AuthHandler) Refresh(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		RespondUnAuthorized(ctx, "no_refresh", "Missing refresh token")
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)

	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	row, err := h.refreshStore.GetForUpdate(cctx, tx, claims.JTI)

	if err != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	//  check if it is revoked/expired

	if row.RevokedAt != nil {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token")
		return
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		RespondUnAuthorized(ctx, "expired_refresh", "Refresh token expired.")
		return
	}

	// verify hash matches the presented token (prevents token substitution)

	if row.TokenHash != h.jwt.HashRefreshToken(raw) {
		RespondUnAuthorized(ctx, "invalid_refresh", "Invalid refresh token.")
		return
	}

	// if these checks pass issue a new refresh token

	newRaw, newJTI, newExpiresAt, err := h.jwt.GenerateRefreshToken(row.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// revoke old, insert new

	err = h.refreshStore.Revoke(cctx, tx, row.ID, &newJTI)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	newRow := postgres.RefreshTokenRow{
		ID:        newJTI,
		UserID:    row.UserID,
		TokenHash: h.jwt.HashRefreshToken(newRaw),
		ExpiresAt: newExpiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(cctx, tx, newRow)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	err = tx.Commit(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not refresh session")
		return
	}

	// Generate a new access token
	accessToken, err := h.jwt.GenerateAccessToken(row.UserID, claims.Email, claims.Role)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.setRefreshCookie(ctx, newRaw, newExpiresAt)

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
	})
}

// Logout revokes the presented refresh token and announces the sign-out.

func (h *AuthHandler) Logout(ctx *gin.Context) {
	raw, err := ctx.Cookie(h.refreshCookieName())

	if err != nil || raw == "" {
		// still clear cookie to be safe
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	claims, err := h.jwt.VerifyRefreshToken(raw)
	if err != nil {
		h.clearRefreshCookie(ctx)
		ctx.Status(http.StatusNoContent)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	tx, err := h.refreshStore.BeginTx(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not sign out")
		return
	}
	defer func() { _ = tx.Rollback(cctx) }()

	if err := h.refreshStore.Revoke(cctx, tx, claims.JTI, nil); err != nil {
		RespondInternal(ctx, "Could not sign out")
		return
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not sign out")
		return
	}

	h.publish(session.Event{Type: session.SignedOut, At: time.Now().UTC()})

	h.clearRefreshCookie(ctx)
	ctx.Status(http.StatusNoContent)
}

// Helper functions

func (h *AuthHandler) publish(ev session.Event) {
	if h.bus == nil {
		return
	}

	pctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	if err := h.bus.Publish(pctx, ev); err != nil {
		// the bus is advisory; a missed event only delays the resolver
		h.log.Warn("session event publish failed", "type", ev.Type, "err", err)
	}
}

func (h *AuthHandler) storeRefreshToken(ctx context.Context, userID, jti, raw string, expiresAt time.Time) error {
	tx, err := h.refreshStore.BeginTx(ctx)

	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := postgres.RefreshTokenRow{
		ID:        jti,
		UserID:    userID,
		TokenHash: h.jwt.HashRefreshToken(raw),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}

	err = h.refreshStore.Create(ctx, tx, row)

	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (h *AuthHandler) refreshCookieName() string {
	return "refresh_token"
}

func (h *AuthHandler) setRefreshCookie(ctx *gin.Context, raw string, expiresAt time.Time) {
	secure := h.cfg.Env == "prod"

	maxAge := int(time.Until(expiresAt).Seconds())

	ctx.SetSameSite(http.SameSiteStrictMode)

	ctx.SetCookie(
		h.refreshCookieName(),
		raw,
		maxAge,
		"/auth",
		"",
		secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearRefreshCookie(ctx *gin.Context) {
	secure := h.cfg.Env == "prod"
	ctx.SetSameSite(http.SameSiteStrictMode)
	ctx.SetCookie(
		h.refreshCookieName(),
		"",
		-1,
		"/auth",
		"",
		secure,
		true,
	)
}
