package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/mattkendal/kudos/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	parentIDHeader  = "X-Parent-Id"
	parentPINHeader = "X-Parent-Pin"

	pinAttemptLimit  = 5
	pinAttemptWindow = time.Minute
)

// RequireParentMode guards confirmation, review, and adjustment routes.
// The request must name a family member with a PIN set and present that PIN;
// this is a lightweight device-local gate, not session auth. Attempts are
// rate limited per client IP to blunt PIN guessing.
func RequireParentMode(children *store.ChildStore, limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow("pin:"+RealIP(r), pinAttemptLimit, pinAttemptWindow) {
				writeError(w, http.StatusTooManyRequests, "too many PIN attempts, try again shortly")
				return
			}

			parentID, err := strconv.ParseInt(r.Header.Get(parentIDHeader), 10, 64)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "parent mode required")
				return
			}

			hash, err := children.GetPINHash(parentID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to check PIN")
				return
			}
			if hash == "" {
				writeError(w, http.StatusUnauthorized, "no PIN set for this member")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(r.Header.Get(parentPINHeader))); err != nil {
				writeError(w, http.StatusUnauthorized, "incorrect PIN")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
