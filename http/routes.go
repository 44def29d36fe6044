package http

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (s *Server) routes() *httprouter.Router {
	r := httprouter.New()

	r.Handler("GET", "/healthz", s.healthz())

	// JSON APIs
	r.Handler("GET", "/season", s.SeasonShow())
	r.Handler("GET", "/season/:id/minimal", s.SeasonMinimalShow())

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Error(w, r, errNotFound(r.URL.Path))
	})
	return r
}

func (s *Server) healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, r, map[string]string{"status": "ok"})
	})
}
