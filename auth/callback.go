package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const callbackResponseHTML = `<!DOCTYPE html>
<html>
<head><title>Quantum Inspire</title></head>
<body>
<p>Login complete. You can close this window and return to the terminal.</p>
</body>
</html>`

type callbackResult struct {
	code string
	err  error
}

// newCallbackServer builds the short-lived listener that receives the
// authorization redirect. It delivers exactly one result and ignores
// any further requests; login is a one-shot, user-attended operation.
func newCallbackServer(state string, results chan<- callbackResult) *http.Server {
	router := chi.NewRouter()
	router.Get("/callback", func(w http.ResponseWriter, r *http.Request) {
		res := parseCallback(r, state)

		if res.err != nil {
			http.Error(w, "Authorization failed. You can close this window.", http.StatusBadRequest)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(callbackResponseHTML))
		}

		select {
		case results <- res:
		default:
		}
	})
	return &http.Server{Handler: router}
}

func parseCallback(r *http.Request, state string) callbackResult {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		if errParam == "access_denied" {
			return callbackResult{err: ErrAuthDenied}
		}
		reason := errParam
		if desc := q.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		return callbackResult{err: &ProtocolError{Reason: reason}}
	}

	code := q.Get("code")
	gotState := q.Get("state")
	switch {
	case code == "" || gotState == "":
		return callbackResult{err: &ProtocolError{Reason: "callback is missing code or state parameter"}}
	case gotState != state:
		return callbackResult{err: &ProtocolError{Reason: "callback state does not match"}}
	}
	return callbackResult{code: code}
}
