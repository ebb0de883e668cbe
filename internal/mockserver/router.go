package mockserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/moxuanyu/resumepilot/pkg/httpx"
)

// NewRouter 组装开发服务器的全部路由。
func NewRouter(store *Store, assistant *Assistant, hub *Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	authHandler := NewAuthHandler(store)
	resumeHandler := NewResumeHandler(store)
	chatflowHandler := NewChatflowHandler(store, assistant, hub)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		authHandler.RegisterRoutes(api)

		api.Group(func(protected chi.Router) {
			protected.Use(authHandler.RequireAuth)
			resumeHandler.RegisterRoutes(protected)
			chatflowHandler.RegisterRoutes(protected)
			protected.Get("/notifications/ws", hub.ServeWS)
		})
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
