package http

import (
	"net/http"

	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
)

type refineRequest struct {
	Text string `json:"text" validate:"required"`
	Tone string `json:"tone" validate:"omitempty,oneof=warm formal casual"`
}

func (s *Server) refine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	refined, err := s.uc.Refine.Refine(r.Context(), req.Text, types.Tone(req.Tone))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"text": refined})
}
