package middleware

import (
	"fmt"
	"net/http"

	"github.com/angelmondragon/ledgerly-backend/api/responses"
	pkgerrors "github.com/angelmondragon/ledgerly-backend/pkg/errors"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
)

// Recoverer turns handler panics into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can drop the connection as intended.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				switch {
				case rec == nil:
					return
				case rec == http.ErrAbortHandler:
					panic(rec)
				}
				recovered(logg, w, r, rec)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func recovered(logg *logger.Logger, w http.ResponseWriter, r *http.Request, rec any) {
	err, ok := rec.(error)
	if !ok {
		err = fmt.Errorf("%v", rec)
	}
	err = fmt.Errorf("panic: %w", err)

	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{
			"method": r.Method,
			"path":   redactPath(r.URL.Path),
		})
		// Error attaches the stack, which still holds the panicking frames here.
		logg.Error(ctx, "request.panic", err)
	}
	responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected server error"))
}
