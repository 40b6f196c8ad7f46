package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/angelmondragon/ledgerly-backend/api/responses"
	"github.com/angelmondragon/ledgerly-backend/pkg/auth"
	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

// Auth requires an owner bearer token and puts the owner id on the
// request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, verifierErr := auth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifierErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, verifierErr, "auth not configured"))
				return
			}
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			owner, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrTokenExpired) {
					msg = "token expired"
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, msg))
				return
			}

			ctx := WithUserID(r.Context(), owner.UserID.String())
			if logg != nil {
				ctx = logg.WithUserID(ctx, owner.UserID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts "Bearer <token>" in any case, or a bare token.
func bearerToken(header string) (string, bool) {
	const scheme = "bearer"
	header = strings.TrimSpace(header)
	if len(header) >= len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		// A scheme with nothing after it carries no credential.
		if rest := header[len(scheme):]; rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			header = strings.TrimSpace(rest)
		}
	}
	return header, header != ""
}
