package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/edge-terminal/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/edge-terminal/backend/internal/service/chat"
	"github.com/zhouzirui/edge-terminal/backend/pkg/utils"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionGetter loads a session by id.
type SessionGetter interface {
	GetSession(ctx context.Context, sessionID string) (chat.Session, error)
}

// RequireUnlocked rejects requests for unknown or locked sessions. The session id is read
// from the {sessionID} route parameter.
func RequireUnlocked(sessions SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
			if errors.Is(err, chatservice.ErrSessionNotFound) {
				utils.RespondError(w, http.StatusNotFound, "session not found")
				return
			}
			if err != nil {
				utils.RespondError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if !session.Unlocked {
				utils.RespondError(w, http.StatusForbidden, "session is locked")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, session)))
		})
	}
}

// SessionFromContext returns the session attached by RequireUnlocked.
func SessionFromContext(ctx context.Context) (chat.Session, bool) {
	session, ok := ctx.Value(sessionKey).(chat.Session)
	return session, ok
}
