package mid

import (
	"context"
	"net/http"
	"strings"

	"github.com/ardanlabs/ledgersim/foundation/web"
)

// Cors sets the response headers needed for Cross-Origin Resource Sharing.
// The origins are separated by commas. "*" allows every origin, otherwise the
// request origin is echoed back only when it is in the list.
func Cors(origins string) web.Middleware {
	allowed := make(map[string]struct{})
	var anyOrigin bool
	for _, origin := range strings.Split(origins, ",") {
		switch origin = strings.TrimSpace(origin); origin {
		case "":
		case "*":
			anyOrigin = true
		default:
			allowed[origin] = struct{}{}
		}
	}

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if anyOrigin {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				origin := r.Header.Get("Origin")
				w.Header().Add("Vary", "Origin")
				if _, exists := allowed[origin]; !exists {
					return handler(ctx, w, r)
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding")
			w.Header().Set("Access-Control-Max-Age", "86400")

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
