package llm_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
)

type mockSession struct {
	generateFn func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error)
}

func (s *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.generateFn(ctx, input, opts...)
}

func (s *mockSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, errors.New("stream is not supported")
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return nil, errors.New("GenerateContent is deprecated, use Generate")
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, errors.New("GenerateStream is deprecated, use Stream")
}

func (s *mockSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockClient struct {
	generateFn   func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error)
	generateEmbeddingFn func(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

func (c *mockClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return &mockSession{generateFn: c.generateFn}, nil
}

func (c *mockClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return c.generateEmbeddingFn(ctx, dimension, input)
}

func textResponse(texts ...string) *gollem.Response {
	return &gollem.Response{Texts: texts}
}

func TestGenerate(t *testing.T) {
	t.Run("returns joined text", func(t *testing.T) {
		var prompt string
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				if text, ok := input[0].(gollem.Text); ok {
					prompt = string(text)
				}
				return textResponse("어린 시절 ", "가장 좋아했던 놀이는 무엇이었나요?"), nil
			},
		})
		gt.NoError(t, err).Required()

		out, err := svc.Generate(context.Background(), llm.Request{
			Name:         "question",
			SystemPrompt: "system",
			Prompt:       "user prompt",
			Params:       llm.Params{Temperature: 0.7, MaxTokens: 200},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal("어린 시절 가장 좋아했던 놀이는 무엇이었나요?")
		gt.Value(t, prompt).Equal("user prompt")
	})

	t.Run("forwards temperature and max tokens to the provider", func(t *testing.T) {
		var temperature *float64
		var maxTokens *int
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				cfg := gollem.NewGenerateConfig(opts...)
				temperature = cfg.Temperature()
				maxTokens = cfg.MaxTokens()
				return textResponse("다듬어진 문장"), nil
			},
		})
		gt.NoError(t, err).Required()

		_, err = svc.Generate(context.Background(), llm.Request{
			Name:   "refine",
			Prompt: "p",
			Params: llm.Params{Temperature: 0.3, MaxTokens: 200},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, temperature).NotNil()
		gt.Value(t, *temperature).Equal(0.3)
		gt.Value(t, maxTokens).NotNil()
		gt.Value(t, *maxTokens).Equal(200)
	})

	t.Run("omits max tokens when unbounded", func(t *testing.T) {
		var maxTokens *int
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				cfg := gollem.NewGenerateConfig(opts...)
				maxTokens = cfg.MaxTokens()
				return textResponse("ok"), nil
			},
		})
		gt.NoError(t, err).Required()

		_, err = svc.Generate(context.Background(), llm.Request{Prompt: "p", Params: llm.Params{Temperature: 0.7}})
		gt.NoError(t, err).Required()
		gt.Value(t, maxTokens).Nil()
	})

	t.Run("truncates text output to the token bound", func(t *testing.T) {
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				return textResponse("가나다라마바사"), nil
			},
		})
		gt.NoError(t, err).Required()

		out, err := svc.Generate(context.Background(), llm.Request{
			Prompt: "p",
			Params: llm.Params{MaxTokens: 3},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal("가나다")
	})

	t.Run("keeps JSON output intact when over the bound", func(t *testing.T) {
		raw := `{"chapters":[{"title":"t","content":"c","order":1}]}`
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				return textResponse(raw), nil
			},
		})
		gt.NoError(t, err).Required()

		out, err := svc.Generate(context.Background(), llm.Request{
			Prompt: "p",
			Params: llm.Params{MaxTokens: 5},
			Schema: &gollem.Parameter{Type: gollem.TypeObject},
		})
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal(raw)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				if calls.Add(1) < 3 {
					return nil, errors.New("503 unavailable")
				}
				return textResponse("ok"), nil
			},
		}, llm.WithMaxRetries(2), llm.WithRetryWait(time.Millisecond))
		gt.NoError(t, err).Required()

		out, err := svc.Generate(context.Background(), llm.Request{Prompt: "p"})
		gt.NoError(t, err).Required()
		gt.Value(t, out).Equal("ok")
		gt.Value(t, calls.Load()).Equal(int32(3))
	})

	t.Run("reports upstream error after retries", func(t *testing.T) {
		var calls atomic.Int32
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				calls.Add(1)
				return nil, errors.New("quota exceeded")
			},
		}, llm.WithMaxRetries(1), llm.WithRetryWait(time.Millisecond))
		gt.NoError(t, err).Required()

		_, err = svc.Generate(context.Background(), llm.Request{Prompt: "p"})
		gt.Error(t, err).Is(model.ErrUpstreamService)
		gt.Value(t, calls.Load()).Equal(int32(2))
	})

	t.Run("empty response is an upstream error", func(t *testing.T) {
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				return textResponse(), nil
			},
		}, llm.WithMaxRetries(0))
		gt.NoError(t, err).Required()

		_, err = svc.Generate(context.Background(), llm.Request{Prompt: "p"})
		gt.Error(t, err).Is(model.ErrUpstreamService)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		svc, err := llm.New(&mockClient{
			generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
				cancel()
				return nil, ctx.Err()
			},
		}, llm.WithMaxRetries(5), llm.WithRetryWait(time.Hour))
		gt.NoError(t, err).Required()

		_, err = svc.Generate(ctx, llm.Request{Prompt: "p"})
		gt.Error(t, err).Is(model.ErrUpstreamService)
	})
}

func TestGenerate_Deadline(t *testing.T) {
	svc, err := llm.New(&mockClient{
		generateFn: func(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
			<-ctx.Done()
			return nil, errors.New("request aborted")
		},
	}, llm.WithMaxRetries(3), llm.WithRetryWait(time.Millisecond))
	gt.NoError(t, err).Required()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.Generate(ctx, llm.Request{Prompt: "p"})
	gt.Error(t, err).Is(model.ErrUpstreamService)
	gt.Error(t, err).Is(context.DeadlineExceeded)
}

func TestEmbed(t *testing.T) {
	t.Run("converts to float32", func(t *testing.T) {
		svc, err := llm.New(&mockClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				gt.Value(t, dimension).Equal(model.EmbeddingDimension)
				gt.Array(t, input).Length(1)
				v := make([]float64, dimension)
				v[0] = 0.5
				return [][]float64{v}, nil
			},
		})
		gt.NoError(t, err).Required()

		vector, err := svc.Embed(context.Background(), "외갓집 마당의 감나무")
		gt.NoError(t, err).Required()
		gt.Array(t, vector).Length(model.EmbeddingDimension)
		gt.Value(t, vector[0]).Equal(float32(0.5))
	})

	t.Run("rejects wrong dimension", func(t *testing.T) {
		svc, err := llm.New(&mockClient{
			generateEmbeddingFn: func(ctx context.Context, dimension int, input []string) ([][]float64, error) {
				return [][]float64{{0.1, 0.2}}, nil
			},
		}, llm.WithMaxRetries(0))
		gt.NoError(t, err).Required()

		_, err = svc.Embed(context.Background(), "text")
		gt.Error(t, err).Is(model.ErrUpstreamService)
	})

	t.Run("rejects empty text", func(t *testing.T) {
		svc, err := llm.New(&mockClient{})
		gt.NoError(t, err).Required()

		_, err = svc.Embed(context.Background(), "  ")
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := llm.New(nil)
	gt.Value(t, err).NotNil()
}

func TestGenerate_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}

	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	ctx := context.Background()
	llmClient, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err).Required()

	svc, err := llm.New(llmClient)
	gt.NoError(t, err).Required()

	t.Run("Generate returns text", func(t *testing.T) {
		out, err := svc.Generate(ctx, llm.Request{
			SystemPrompt: "당신은 따뜻한 인터뷰어입니다. 질문 하나만 하세요.",
			Prompt:       "어린 시절에 대해 물어봐 주세요.",
			Params:       llm.Params{Temperature: 0.7, MaxTokens: 200},
		})
		gt.NoError(t, err).Required()
		gt.String(t, out).NotEqual("")
	})

	t.Run("Embed returns full dimension", func(t *testing.T) {
		vector, err := svc.Embed(ctx, "외갓집 마당의 감나무 아래에서 놀았다")
		gt.NoError(t, err).Required()
		gt.Array(t, vector).Length(model.EmbeddingDimension)
	})
}
