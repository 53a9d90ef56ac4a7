package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/geocoder89/expensehub/internal/security"
	"github.com/gin-gonic/gin"
)

// UserStore is the credential store as seen by the auth and user handlers.
type UserStore interface {
	Create(ctx context.Context, username, passwordHash string) (user.User, error)
	GetByUsername(ctx context.Context, username string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) (bool, error)
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

const storeTimeout = 3 * time.Second

const invalidCredentialsMessage = "Username or password is incorrect."

type AuthHandler struct {
	users  UserStore
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger
	prom   *observability.Prom
}

func NewAuthHandler(users UserStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger, prom *observability.Prom) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    log,
		prom:   prom,
	}
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req user.CredentialsRequest

	if !BindJSON(ctx, &req) {
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		respondFieldError(ctx, "username", "blank", "")
		return
	}

	if !checkPasswordBytes(ctx, "password", req.Password) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.prom.ObserveAuth("signup", "error")
		internalError(ctx, h.log, "Could not create user", err)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.Create(cctx, username, hash)
	if err != nil {
		if errors.Is(err, user.ErrUsernameTaken) {
			h.prom.ObserveAuth("signup", "conflict")
			RespondError(ctx, http.StatusBadRequest, "username_taken", "Username is already taken.", nil)
			return
		}

		h.prom.ObserveAuth("signup", "error")
		internalError(ctx, h.log, "Could not create user", err)
		return
	}

	h.prom.ObserveAuth("signup", "ok")
	h.log.InfoContext(ctx.Request.Context(), "user signed up", "user_id", u.ID)

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.CredentialsRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for DB lookup
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	found, err := h.users.GetByUsername(cctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			h.prom.ObserveAuth("login", "invalid")
			RespondError(ctx, http.StatusBadRequest, "invalid_credentials", invalidCredentialsMessage, nil)
			return
		}

		h.prom.ObserveAuth("login", "error")
		internalError(ctx, h.log, "Could not log in", err)
		return
	}

	ok, err := h.hasher.Verify(req.Password, found.PasswordHash)
	if err != nil {
		h.prom.ObserveAuth("login", "error")
		internalError(ctx, h.log, "Could not log in", err)
		return
	}

	if !ok {
		h.prom.ObserveAuth("login", "invalid")
		RespondError(ctx, http.StatusBadRequest, "invalid_credentials", invalidCredentialsMessage, nil)
		return
	}

	token, err := h.tokens.Issue(found.ID)
	if err != nil {
		h.prom.ObserveAuth("login", "error")
		internalError(ctx, h.log, "Could not generate access token", err)
		return
	}

	h.prom.ObserveAuth("login", "ok")

	ctx.JSON(http.StatusOK, gin.H{
		"token":  token,
		"userId": found.ID,
	})
}

// bcrypt only looks at the first 72 bytes; longer inputs are refused.
func checkPasswordBytes(ctx *gin.Context, field, password string) bool {
	if len(password) > security.MaxPasswordBytes {
		respondFieldError(ctx, field, "maxbytes", strconv.Itoa(security.MaxPasswordBytes))
		return false
	}
	return true
}
