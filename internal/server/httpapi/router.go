// Package httpapi exposes the sync protocol over JSON REST: registration and
// login, then per-kind record collections with idempotent creates,
// precondition-guarded updates, idempotent deletes, and incremental listing.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vmartynov/offsync/internal/logging"
	"github.com/vmartynov/offsync/internal/server/models"
	"github.com/vmartynov/offsync/internal/server/services"
)

// UserAPI is the account surface the handlers require.
type UserAPI interface {
	TokenVerifier
	Register(ctx context.Context, login, password string) (*models.User, error)
	Login(ctx context.Context, login, password string) (string, error)
}

// RecordAPI is the record surface the handlers require.
type RecordAPI interface {
	Create(ctx context.Context, userID, kind, clientKey string, fields map[string]any) (*models.Record, error)
	Update(ctx context.Context, userID, kind string, id int64, changes map[string]any, precondition *time.Time) (*models.Record, error)
	Delete(ctx context.Context, userID, kind string, id int64) error
	List(ctx context.Context, userID, kind string, updatedSince *time.Time, page, perPage int) ([]*models.Record, int, error)
}

// Handler bundles the HTTP handlers with their collaborators.
type Handler struct {
	users   UserAPI
	records RecordAPI
	log     logging.Logger
}

func NewHandler(users UserAPI, records RecordAPI, log logging.Logger) *Handler {
	return &Handler{users: users, records: records, log: log.With("component", "httpapi")}
}

// validKind rejects record kinds the deployment does not serve.
func validKind(kinds []string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, k := range kinds {
		allowed[k] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[chi.URLParam(r, "kind")] {
				http.Error(w, "unknown kind", http.StatusNotFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter mounts the API:
//
//	POST /api/auth/register → Handler.Register
//	POST /api/auth/login    → Handler.Login
//	GET  /api/ping          → Handler.Ping
//	POST   /api/{kind}      → Handler.CreateRecord  (auth)
//	GET    /api/{kind}      → Handler.ListRecords   (auth)
//	PUT    /api/{kind}/{id} → Handler.UpdateRecord  (auth)
//	DELETE /api/{kind}/{id} → Handler.DeleteRecord  (auth)
func NewRouter(h *Handler, kinds []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Get("/ping", h.Ping)

		r.Group(func(r chi.Router) {
			r.Use(withAuth(h.users))

			r.Route("/{kind}", func(r chi.Router) {
				r.Use(validKind(kinds))
				r.Post("/", h.CreateRecord)
				r.Get("/", h.ListRecords)
				r.Put("/{id}", h.UpdateRecord)
				r.Delete("/{id}", h.DeleteRecord)
			})
		})
	})

	return r
}

var _ UserAPI = (*services.UserService)(nil)
var _ RecordAPI = (*services.RecordService)(nil)
