package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/http/middlewares"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/gin-gonic/gin"
)

// UsersHandler serves the user resource. Every operation targets exactly one
// user, and that user must be the caller: a mismatch is 403 and the store is
// never consulted.
type UsersHandler struct {
	users  UserStore
	hasher PasswordHasher
	log    *slog.Logger
	prom   *observability.Prom
}

func NewUsersHandler(users UserStore, hasher PasswordHasher, log *slog.Logger, prom *observability.Prom) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{users: users, hasher: hasher, log: log, prom: prom}
}

func (h *UsersHandler) GetProfile(ctx *gin.Context) {
	if !h.requireSelf(ctx, ctx.Param("id")) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		internalError(ctx, h.log, "Could not fetch user", err)
		return
	}

	ctx.JSON(http.StatusOK, u.Profile())
}

func (h *UsersHandler) VerifyPassword(ctx *gin.Context) {
	var req user.VerifyPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !h.requireSelf(ctx, req.UserID) {
		return
	}

	if !checkPasswordBytes(ctx, "password", req.Password) {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByID(cctx, req.UserID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		internalError(ctx, h.log, "Could not verify password", err)
		return
	}

	valid, err := h.hasher.Verify(req.Password, u.PasswordHash)
	if err != nil {
		h.prom.ObserveAuth("verify_password", "error")
		internalError(ctx, h.log, "Could not verify password", err)
		return
	}

	if valid {
		h.prom.ObserveAuth("verify_password", "ok")
	} else {
		h.prom.ObserveAuth("verify_password", "invalid")
	}

	ctx.JSON(http.StatusOK, gin.H{"valid": valid})
}

func (h *UsersHandler) UpdatePassword(ctx *gin.Context) {
	id := ctx.Param("id")

	if !h.requireSelf(ctx, id) {
		return
	}

	var req user.UpdatePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !checkPasswordBytes(ctx, "newPassword", req.NewPassword) {
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		h.prom.ObserveAuth("update_password", "error")
		internalError(ctx, h.log, "Could not update password", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if err := h.users.UpdatePassword(cctx, id, hash); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		h.prom.ObserveAuth("update_password", "error")
		internalError(ctx, h.log, "Could not update password", err)
		return
	}

	h.prom.ObserveAuth("update_password", "ok")
	h.log.InfoContext(ctx.Request.Context(), "password updated", "user_id", id)

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// requireSelf answers 401 without an identity and 403 when target is not
// the caller.
func (h *UsersHandler) requireSelf(ctx *gin.Context, target string) bool {
	caller, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "Authentication required")
		return false
	}

	if target != caller {
		RespondForbidden(ctx, "You can only access your own account")
		return false
	}

	return true
}
