package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/avelats/polycat/internal/common"
	"github.com/avelats/polycat/internal/server/auth"
	"github.com/avelats/polycat/internal/server/models"
)

type contextKey string

const principalKey contextKey = "principal"

// principalMiddleware verifies the Authorization bearer token and stores the
// asserted principal on the request context. Every /api route requires it.
func (s *Server) principalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, r, common.ErrInvalidToken)
			return
		}

		p, err := auth.PrincipalFromToken(token, s.jwtSecret)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) models.Principal {
	p, _ := ctx.Value(principalKey).(models.Principal)
	return p
}
