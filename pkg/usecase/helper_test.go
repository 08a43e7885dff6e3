package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// mockLLM is a hand-written llm.Service that records every request
type mockLLM struct {
	mu         sync.Mutex
	requests   []llm.Request
	generateFn func(ctx context.Context, req llm.Request) (string, error)
	embedFn    func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.generateFn != nil {
		return m.generateFn(ctx, req)
	}
	return "어린 시절 가장 기억에 남는 장소는 어디인가요?", nil
}

func (m *mockLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return unitVector(0), nil
}

func (m *mockLLM) Requests(name string) []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []llm.Request
	for _, req := range m.requests {
		if req.Name == name {
			out = append(out, req)
		}
	}
	return out
}

var _ llm.Service = &mockLLM{}

func unitVector(axis int) []float32 {
	v := make([]float32, model.EmbeddingDimension)
	v[axis] = 1
	return v
}

// keywordEmbedder maps a text onto the axis of the first keyword it contains
func keywordEmbedder(keywords ...string) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		for i, kw := range keywords {
			if strings.Contains(text, kw) {
				return unitVector(i + 1), nil
			}
		}
		return unitVector(0), nil
	}
}

type testEnv struct {
	repo *memory.Memory
	llm  *mockLLM
	uc   *usecase.UseCases
}

func newTestEnv(t *testing.T, mock *mockLLM, opts ...usecase.Option) *testEnv {
	t.Helper()
	if mock == nil {
		mock = &mockLLM{}
	}
	repo := memory.New()
	return &testEnv{
		repo: repo,
		llm:  mock,
		uc:   usecase.New(repo, mock, opts...),
	}
}

func (e *testEnv) createProject(t *testing.T, authorID model.AuthorID) *model.Project {
	t.Helper()
	project, err := e.uc.Project.CreateProject(context.Background(), authorID, "나의 이야기", "")
	gt.NoError(t, err).Required()
	return project
}

// waitEmbedded polls until the fragment carries an embedding
func (e *testEnv) waitEmbedded(t *testing.T, f *model.Fragment) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := e.repo.Fragment().Get(context.Background(), f.AuthorID, f.ProjectID, f.ID)
		gt.NoError(t, err).Required()
		if got.Embedded {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("fragment %s was not embedded", f.ID)
}
