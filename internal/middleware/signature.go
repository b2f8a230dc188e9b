package middleware

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"battlearena/internal/security"
)

const (
	signatureMaxAge  = 5 * time.Minute
	signatureMaxSkew = 2 * time.Minute
)

// NonceStore records seen nonces. *redis.Client satisfies it.
type NonceStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Signature verifies the HMAC request signature of an authenticated caller.
// It must run after Auth; the signing key id is the caller's user id.
func Signature(secret string, nonces NonceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		date, nonce, signature, err := security.ExtractSignatureHeaders(c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "signature required"})
			return
		}

		requestTime, err := time.Parse(time.RFC3339, date)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid signature date"})
			return
		}

		if time.Since(requestTime) > signatureMaxAge || time.Until(requestTime) > signatureMaxSkew {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "request expired"})
			return
		}

		rawBody, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))

		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": unauthenticatedMessage})
			return
		}

		path, query := security.CanonicalPath(c.Request)
		valid := security.ValidateSignature(
			secret,
			user.ID,
			signature,
			c.Request.Method,
			path,
			query,
			rawBody,
			date,
			nonce,
		)
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid signature"})
			return
		}

		nonceKey := fmt.Sprintf("sig:%s:%s", user.ID, nonce)
		fresh, err := nonces.SetNX(c.Request.Context(), nonceKey, "1", signatureMaxAge).Result()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "replay detected"})
			return
		}

		c.Next()
	}
}
