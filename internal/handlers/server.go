// Package handlers exposes the HTTP control plane: dashboard snapshot,
// parameter updates, credit checks, account switching and manual
// conversation interventions.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/log"

	"glenda/internal/services"
)

// Server wires the HTTP routes to the services.
type Server struct {
	router        *mux.Router
	apiToken      string
	dashboard     *services.DashboardService
	conversations *services.ConversationService
	hr            *services.HRCollectionService
	gateway       services.WhatsAppGateway
}

func NewServer(
	apiToken string,
	dashboard *services.DashboardService,
	conversations *services.ConversationService,
	hr *services.HRCollectionService,
	gateway services.WhatsAppGateway,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		apiToken:      apiToken,
		dashboard:     dashboard,
		conversations: conversations,
		hr:            hr,
		gateway:       gateway,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	chain := alice.New(s.logRequest, s.authenticate)

	s.router.Handle("/health", alice.New(s.logRequest).ThenFunc(s.Health())).Methods("GET")

	s.router.Handle("/dashboard", chain.ThenFunc(s.DashboardSnapshot())).Methods("GET")
	s.router.Handle("/dashboard", chain.ThenFunc(s.DashboardApply())).Methods("POST")
	s.router.Handle("/dashboard/credits/check", chain.ThenFunc(s.CreditsCheck())).Methods("POST")
	s.router.Handle("/dashboard/account/switch", chain.ThenFunc(s.AccountSwitch())).Methods("POST")

	s.router.Handle("/conversations/{id:[0-9]+}/retry", chain.ThenFunc(s.ConversationRetry())).Methods("POST")
	s.router.Handle("/conversations/{id:[0-9]+}/resolve", chain.ThenFunc(s.ConversationForceResolve())).Methods("POST")
	s.router.Handle("/bounces/{id:[0-9]+}/resolve-via-email", chain.ThenFunc(s.BounceResolveViaEmail())).Methods("POST")

	s.router.Handle("/hr/requests", chain.ThenFunc(s.HRStartRequest())).Methods("POST")
	s.router.Handle("/hr/requests/{id:[0-9]+}/cancel", chain.ThenFunc(s.HRCancelRequest())).Methods("POST")

	s.router.Handle("/phones/validate", chain.ThenFunc(s.ValidatePhone())).Methods("GET")
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken == "" || r.Header.Get("X-API-Key") != s.apiToken {
			s.respondError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Response marshal failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// Health is the unauthenticated liveness probe.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
