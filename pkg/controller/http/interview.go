package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
)

type openInterviewRequest struct {
	Resume bool `json:"resume"`
}

type answerRequest struct {
	Answer string `json:"answer" validate:"required"`
}

type answerResponse struct {
	Fragment fragmentResponse  `json:"fragment"`
	Session  interviewResponse `json:"session"`
}

func sessionIDParam(r *http.Request) model.SessionID {
	return model.SessionID(chi.URLParam(r, "sessionID"))
}

func (s *Server) openInterview(w http.ResponseWriter, r *http.Request) {
	var req openInterviewRequest
	if r.ContentLength != 0 {
		if err := s.decodeRequest(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}

	session, err := s.uc.Interview.Open(r.Context(), authorFrom(r.Context()), projectIDParam(r), req.Resume)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toInterviewResponse(session))
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	session, err := s.uc.Interview.Get(r.Context(), authorFrom(r.Context()), sessionIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toInterviewResponse(session))
}

func (s *Server) answerInterview(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.uc.Interview.Answer(r.Context(), authorFrom(r.Context()), sessionIDParam(r), req.Answer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, answerResponse{
		Fragment: toFragmentResponse(result.Fragment),
		Session:  toInterviewResponse(result.Session),
	})
}

func (s *Server) askInterview(w http.ResponseWriter, r *http.Request) {
	session, err := s.uc.Interview.Ask(r.Context(), authorFrom(r.Context()), sessionIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toInterviewResponse(session))
}

func (s *Server) resetInterview(w http.ResponseWriter, r *http.Request) {
	session, err := s.uc.Interview.Reset(r.Context(), authorFrom(r.Context()), sessionIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toInterviewResponse(session))
}

func (s *Server) closeInterview(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Interview.Close(r.Context(), authorFrom(r.Context()), sessionIDParam(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
