package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/services"
)

type PersonHandler struct {
	People      *services.PersonService
	Suggestions *services.SuggestionService
}

type personRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type personResponse struct {
	models.Person
	HasEncoding bool `json:"has_encoding"`
}

func toPersonResponse(p *models.Person) personResponse {
	return personResponse{Person: *p, HasEncoding: p.HasEncoding()}
}

// parseIDParam reads a positive numeric chi URL parameter. it writes the 400
// itself and returns false when the value is malformed.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid "+name+" format")
		return 0, false
	}
	return uint(id), true
}

func (ph *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req personRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	person, err := ph.People.Create(r.Context(), currentUser(r), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonResponse(person))
}

func (ph *PersonHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := ph.People.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]personResponse, 0, len(people))
	for i := range people {
		out = append(out, toPersonResponse(&people[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (ph *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "person_id")
	if !ok {
		return
	}
	person, err := ph.People.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonResponse(person))
}

func (ph *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "person_id")
	if !ok {
		return
	}
	var req personRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	person, err := ph.People.Rename(r.Context(), currentUser(r), id, req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonResponse(person))
}

func (ph *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "person_id")
	if !ok {
		return
	}
	if err := ph.People.Delete(r.Context(), currentUser(r), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FindMatches lists untagged faces that look like the person. an optional
// ?threshold= in (0,1] overrides the configured person threshold.
func (ph *PersonHandler) FindMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "person_id")
	if !ok {
		return
	}
	threshold := 0.0
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 || v > 1 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_threshold", "threshold must be a number in (0, 1]")
			return
		}
		threshold = v
	}
	matches, err := ph.Suggestions.FindMatchesForPerson(r.Context(), id, threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"person_id":   id,
		"matches":     matches,
		"match_count": len(matches),
	})
}
