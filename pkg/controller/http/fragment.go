package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

type createFragmentRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer" validate:"required"`
	AudioURL string `json:"audio_url" validate:"omitempty,url"`
}

type updateFragmentRequest struct {
	Question *string `json:"question,omitempty"`
	Answer   *string `json:"answer,omitempty" validate:"omitempty,min=1"`
	AudioURL *string `json:"audio_url,omitempty" validate:"omitempty,url"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit" validate:"gte=0,lte=50"`
}

func fragmentIDParam(r *http.Request) model.FragmentID {
	return model.FragmentID(chi.URLParam(r, "fragmentID"))
}

func (s *Server) createFragment(w http.ResponseWriter, r *http.Request) {
	var req createFragmentRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	fragment, err := s.uc.Fragment.CreateFragment(r.Context(), authorFrom(r.Context()), projectIDParam(r), usecase.FragmentInput{
		Question: req.Question,
		Answer:   req.Answer,
		AudioURL: req.AudioURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toFragmentResponse(fragment))
}

func (s *Server) listFragments(w http.ResponseWriter, r *http.Request) {
	fragments, err := s.uc.Fragment.ListFragments(r.Context(), authorFrom(r.Context()), projectIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]fragmentResponse, len(fragments))
	for i, f := range fragments {
		resp[i] = toFragmentResponse(f)
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"fragments": resp})
}

func (s *Server) getFragment(w http.ResponseWriter, r *http.Request) {
	fragment, err := s.uc.Fragment.GetFragment(r.Context(), authorFrom(r.Context()), projectIDParam(r), fragmentIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toFragmentResponse(fragment))
}

func (s *Server) updateFragment(w http.ResponseWriter, r *http.Request) {
	var req updateFragmentRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	fragment, err := s.uc.Fragment.UpdateFragment(r.Context(), authorFrom(r.Context()), projectIDParam(r), fragmentIDParam(r), model.FragmentUpdate{
		Question: req.Question,
		Answer:   req.Answer,
		AudioURL: req.AudioURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toFragmentResponse(fragment))
}

func (s *Server) deleteFragment(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Fragment.DeleteFragment(r.Context(), authorFrom(r.Context()), projectIDParam(r), fragmentIDParam(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reindexFragments(w http.ResponseWriter, r *http.Request) {
	result, err := s.uc.Fragment.Reindex(r.Context(), authorFrom(r.Context()), projectIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toReindexResponse(result))
}

func (s *Server) searchFragments(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	results, err := s.uc.Fragment.Search(r.Context(), authorFrom(r.Context()), projectIDParam(r), req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]searchResultResponse, len(results))
	for i, res := range results {
		resp[i] = searchResultResponse{
			FragmentID: res.FragmentID.String(),
			Question:   res.Question,
			Answer:     res.Answer,
			Similarity: res.Similarity,
			CreatedAt:  res.CreatedAt,
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"results": resp})
}
