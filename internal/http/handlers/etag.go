package handlers

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag writes payload with a weak validator derived from its
// encoding and answers 304 when the client already holds that representation.
func RespondJSONWithETag(ctx *gin.Context, log *slog.Logger, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		internalError(ctx, log, "Could not encode response", err)
		return
	}

	etag := weakETag(body)
	ctx.Header("ETag", etag)

	if status == http.StatusOK && matchesETag(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.Data(status, "application/json; charset=utf-8", body)
}

func weakETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + base64.RawURLEncoding.EncodeToString(sum[:16]) + `"`
}

// If-None-Match uses weak comparison: W/ prefixes are ignored on both sides.
func matchesETag(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}

	want := opaqueTag(etag)
	for _, candidate := range strings.Split(header, ",") {
		if opaqueTag(candidate) == want {
			return true
		}
	}

	return false
}

func opaqueTag(tag string) string {
	return strings.TrimPrefix(strings.TrimSpace(tag), "W/")
}
