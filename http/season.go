package http

import (
	"net/http"
	"strconv"

	"github.com/benprew/showtrack"
	"github.com/julienschmidt/httprouter"
)

func errNotFound(path string) error {
	return showtrack.Errorf(showtrack.ENOTFOUND, "not found: %s", path)
}

// SeasonShow returns the first season in the store. Used by the sync side to
// check that the store has data.
func (s *Server) SeasonShow() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		season, ok, err := s.SeasonService.GetSeason(r.Context())
		if err != nil {
			s.Error(w, r, err)
			return
		} else if !ok {
			s.Error(w, r, showtrack.Errorf(showtrack.ENOTFOUND, "no seasons stored"))
			return
		}
		s.writeJSON(w, r, season)
	})
}

func (s *Server) SeasonMinimalShow() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idParam := httprouter.ParamsFromContext(r.Context()).ByName("id")
		id, err := strconv.Atoi(idParam)
		if err != nil {
			s.Error(w, r, showtrack.Errorf(showtrack.EINVALID, "invalid season id: %q", idParam))
			return
		}

		season, err := showtrack.FindSeasonMinimalByID(r.Context(), s.SeasonService, id)
		if err != nil {
			s.Error(w, r, err)
			return
		}
		s.writeJSON(w, r, season)
	})
}
