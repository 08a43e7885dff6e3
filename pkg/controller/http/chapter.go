package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/utils/safe"
)

type updateChapterRequest struct {
	Title   *string         `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *model.Document `json:"content,omitempty"`
}

func chapterIDParam(r *http.Request) model.ChapterID {
	return model.ChapterID(chi.URLParam(r, "chapterID"))
}

func (s *Server) generateChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.uc.Synthesis.Synthesize(r.Context(), authorFrom(r.Context()), projectIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"chapters": toChapterResponses(chapters)})
}

func (s *Server) listChapters(w http.ResponseWriter, r *http.Request) {
	chapters, err := s.uc.Chapter.ListChapters(r.Context(), authorFrom(r.Context()), projectIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"chapters": toChapterResponses(chapters)})
}

func (s *Server) getChapter(w http.ResponseWriter, r *http.Request) {
	chapter, err := s.uc.Chapter.GetChapter(r.Context(), authorFrom(r.Context()), projectIDParam(r), chapterIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toChapterResponse(chapter))
}

func (s *Server) updateChapter(w http.ResponseWriter, r *http.Request) {
	var req updateChapterRequest
	if err := s.decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	chapter, err := s.uc.Chapter.UpdateChapter(r.Context(), authorFrom(r.Context()), projectIDParam(r), chapterIDParam(r), model.ChapterUpdate{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toChapterResponse(chapter))
}

func (s *Server) previewChapter(w http.ResponseWriter, r *http.Request) {
	html, err := s.uc.Chapter.PreviewChapter(r.Context(), authorFrom(r.Context()), projectIDParam(r), chapterIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	safe.Write(r.Context(), w, []byte(html))
}

func (s *Server) chapterText(w http.ResponseWriter, r *http.Request) {
	text, err := s.uc.Chapter.ChapterText(r.Context(), authorFrom(r.Context()), projectIDParam(r), chapterIDParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	safe.Write(r.Context(), w, []byte(text))
}
