// Package auth defines the request verification seam for the HTTP API.
// The engine itself does not dictate a scheme; deployments plug in a
// Verifier and the default allows everything.
package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Identity is whatever the verifier learned about the caller.
type Identity struct {
	Subject string
}

// Verifier authenticates an incoming request.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) (Identity, error)
}

// AllowAll admits every request with an anonymous identity.
type AllowAll struct{}

func (AllowAll) Verify(ctx context.Context, r *http.Request) (Identity, error) {
	return Identity{Subject: "anonymous"}, nil
}

var _ Verifier = AllowAll{}

const identityKey = "auth.identity"

// Middleware runs the verifier and aborts unauthenticated requests.
func Middleware(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(c.Request.Context(), c.Request)
		if err != nil {
			log.WithError(err).Debug("Request verification failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// FromContext returns the verified identity, if any.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
