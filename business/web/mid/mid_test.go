package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ardanlabs/ledgersim/business/web/errs"
	"github.com/ardanlabs/ledgersim/business/web/mid"
	"github.com/ardanlabs/ledgersim/foundation/logger"
	"github.com/ardanlabs/ledgersim/foundation/validate"
	"github.com/ardanlabs/ledgersim/foundation/web"
)

func Test_Errors(t *testing.T) {
	log := logger.NewTest(t)

	type table struct {
		name   string
		h      web.Handler
		status int
		msg    string
	}

	tt := []table{
		{
			name: "trusted",
			h: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errs.NotFound("peer %q not found", "abc")
			},
			status: http.StatusNotFound,
			msg:    `peer "abc" not found`,
		},
		{
			name: "validation",
			h: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return validate.FieldErrors{{Field: "data", Error: "data is a required field"}}
			},
			status: http.StatusBadRequest,
			msg:    "data validation error",
		},
		{
			name: "untrusted",
			h: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return errors.New("database password leaked")
			},
			status: http.StatusInternalServerError,
			msg:    http.StatusText(http.StatusInternalServerError),
		},
		{
			name: "panic",
			h: func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				panic("boom")
			},
			status: http.StatusInternalServerError,
			msg:    http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			app := web.NewApp(make(chan os.Signal, 1), mid.Logger(log), mid.Errors(log), mid.Metrics(), mid.Panics())
			app.Handle(http.MethodGet, "v1", "/test", tst.h, mid.Cors("*"))

			w := httptest.NewRecorder()
			app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/test", nil))

			if w.Code != tst.status {
				t.Logf("Test %s:\tgot: %d", tst.name, w.Code)
				t.Logf("Test %s:\texp: %d", tst.name, tst.status)
				t.Fatalf("Test %s:\tShould get the right status code.", tst.name)
			}

			var resp errs.Response
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Test %s:\tShould be able to decode the response: %s", tst.name, err)
			}

			if resp.Error != tst.msg {
				t.Logf("Test %s:\tgot: %s", tst.name, resp.Error)
				t.Logf("Test %s:\texp: %s", tst.name, tst.msg)
				t.Fatalf("Test %s:\tShould get the right error message.", tst.name)
			}

			if w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Fatalf("Test %s:\tShould set the cors headers.", tst.name)
			}
		}

		t.Run(tst.name, f)
	}
}

func Test_Cors(t *testing.T) {
	type table struct {
		name    string
		origins string
		origin  string
		exp     string
	}

	tt := []table{
		{name: "any", origins: "*", origin: "http://elsewhere.io", exp: "*"},
		{name: "listed", origins: "http://localhost:3000, http://ledger.local", origin: "http://ledger.local", exp: "http://ledger.local"},
		{name: "unlisted", origins: "http://localhost:3000", origin: "http://elsewhere.io", exp: ""},
	}

	for _, tst := range tt {
		f := func(t *testing.T) {
			ok := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}

			app := web.NewApp(make(chan os.Signal, 1))
			app.Handle(http.MethodGet, "v1", "/test", ok, mid.Cors(tst.origins))

			r := httptest.NewRequest(http.MethodGet, "/v1/test", nil)
			r.Header.Set("Origin", tst.origin)
			w := httptest.NewRecorder()
			app.ServeHTTP(w, r)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tst.exp {
				t.Logf("Test %s:\tgot: %q", tst.name, got)
				t.Logf("Test %s:\texp: %q", tst.name, tst.exp)
				t.Fatalf("Test %s:\tShould allow only the configured origins.", tst.name)
			}

			if w.Code != http.StatusNoContent {
				t.Fatalf("Test %s:\tShould still serve the request: got %d", tst.name, w.Code)
			}
		}

		t.Run(tst.name, f)
	}
}
