package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/logger"
)

// PipelineKeyHeader carries the shared key of the price pipeline.
const PipelineKeyHeader = "X-API-Key"

// PipelineAuthMiddleware guards the price pipeline endpoints. apiKeys is the
// configured PIPELINE_API_KEY value; several comma-separated keys are accepted
// so a key can be rotated without downtime. With no key configured every
// request gets 503 PIPELINE_DISABLED instead of being let through.
func PipelineAuthMiddleware(apiKeys string) gin.HandlerFunc {
	keys := splitKeys(apiKeys)
	log := logger.Named("pipeline")

	return func(c *gin.Context) {
		if len(keys) == 0 {
			abortWith(c, apperrors.ErrPipelineDisabled)
			return
		}
		if !matchesAny(c.GetHeader(PipelineKeyHeader), keys) {
			log.Warnw("rejected pipeline request",
				"path", c.FullPath(),
				"client_ip", c.ClientIP(),
				"key_present", c.GetHeader(PipelineKeyHeader) != "",
			)
			abortWith(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}

func splitKeys(raw string) [][]byte {
	var keys [][]byte
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}
	return keys
}

// matchesAny compares against every key so timing does not reveal which one matched.
func matchesAny(given string, keys [][]byte) bool {
	if given == "" {
		return false
	}
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(given), k)
	}
	return ok == 1
}

func abortWith(c *gin.Context, e *apperrors.AppError) {
	c.AbortWithStatusJSON(e.StatusCode,
		gin.H{"error": gin.H{"code": e.Code, "message": e.Message}})
}
