package http

import (
	"time"

	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

type projectResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Outline     []model.OutlineItem `json:"outline"`
	Status      types.ProjectStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID.String(),
		Title:       p.Title,
		Description: p.Description,
		Outline:     p.Outline,
		Status:      p.Status.Normalize(),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type fragmentResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Embedded  bool      `json:"embedded"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toFragmentResponse(f *model.Fragment) fragmentResponse {
	return fragmentResponse{
		ID:        f.ID.String(),
		ProjectID: f.ProjectID.String(),
		Question:  f.Question,
		Answer:    f.Answer,
		AudioURL:  f.AudioURL,
		Embedded:  f.Embedded,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

type chapterResponse struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Title     string          `json:"title"`
	Content   *model.Document `json:"content"`
	Order     int             `json:"order"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toChapterResponse(c *model.Chapter) chapterResponse {
	return chapterResponse{
		ID:        c.ID.String(),
		ProjectID: c.ProjectID.String(),
		Title:     c.Title,
		Content:   c.Content,
		Order:     c.Order,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toChapterResponses(chapters []*model.Chapter) []chapterResponse {
	resp := make([]chapterResponse, len(chapters))
	for i, c := range chapters {
		resp[i] = toChapterResponse(c)
	}
	return resp
}

type turnResponse struct {
	Role    types.Role `json:"role"`
	Content string     `json:"content"`
}

type interviewResponse struct {
	ID              string             `json:"id"`
	ProjectID       string             `json:"project_id"`
	State           types.SessionState `json:"state"`
	CurrentQuestion string             `json:"current_question,omitempty"`
	Turns           []turnResponse     `json:"turns"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func toInterviewResponse(s *model.InterviewSession) interviewResponse {
	turns := make([]turnResponse, len(s.Turns))
	for i, t := range s.Turns {
		turns[i] = turnResponse{Role: t.Role, Content: t.Content}
	}
	return interviewResponse{
		ID:              s.ID.String(),
		ProjectID:       s.ProjectID.String(),
		State:           s.State,
		CurrentQuestion: s.CurrentQuestion,
		Turns:           turns,
		UpdatedAt:       s.UpdatedAt,
	}
}

type searchResultResponse struct {
	FragmentID string    `json:"fragment_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Similarity float64   `json:"similarity"`
	CreatedAt  time.Time `json:"created_at"`
}

type reindexResponse struct {
	Pending int `json:"pending"`
	Indexed int `json:"indexed"`
	Failed  int `json:"failed"`
}

func toReindexResponse(r *usecase.ReindexResult) reindexResponse {
	return reindexResponse{Pending: r.Pending, Indexed: r.Indexed, Failed: r.Failed}
}
