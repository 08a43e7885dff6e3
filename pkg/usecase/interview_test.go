package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

// numberedQuestions returns "질문 1", "질문 2", ... for successive interview calls
func numberedQuestions() func(ctx context.Context, req llm.Request) (string, error) {
	var n atomic.Int32
	return func(ctx context.Context, req llm.Request) (string, error) {
		return fmt.Sprintf("질문 %d", n.Add(1)), nil
	}
}

func TestInterviewUseCase_Open(t *testing.T) {
	t.Run("asks the opening question", func(t *testing.T) {
		env := newTestEnv(t, &mockLLM{generateFn: numberedQuestions()})
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()
		gt.Value(t, session.State).Equal(types.SessionStateAwaitingAnswer)
		gt.Value(t, session.CurrentQuestion).Equal("질문 1")
		gt.Array(t, session.Turns).Length(1).Required()
		gt.Value(t, session.Turns[0].Role).Equal(types.RoleQuestioner)

		reqs := env.llm.Requests("interview_question")
		gt.Array(t, reqs).Length(1).Required()
		gt.String(t, reqs[0].Prompt).Contains("자서전")
		gt.String(t, reqs[0].SystemPrompt).Contains("(아직 대화가 없습니다)")
	})

	t.Run("unknown project", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.uc.Interview.Open(context.Background(), "author-1", model.NewProjectID(), false)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("failed opening question discards the session", func(t *testing.T) {
		mock := &mockLLM{
			generateFn: func(ctx context.Context, req llm.Request) (string, error) {
				return "", errors.New("unavailable")
			},
		}
		env := newTestEnv(t, mock)
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(context.Background(), "author-1", project.ID, false)
		gt.Value(t, err).NotNil()
		gt.Value(t, session).Nil()
	})

	t.Run("resume rebuilds the transcript from fragments", func(t *testing.T) {
		env := newTestEnv(t, &mockLLM{generateFn: numberedQuestions()})
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		_, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{
			Question: "고향은?",
			Answer:   "부산입니다.",
		})
		gt.NoError(t, err).Required()
		_, err = env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: "메모 한 줄"})
		gt.NoError(t, err).Required()

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, true)
		gt.NoError(t, err).Required()
		gt.Array(t, session.Turns).Length(4).Required()
		gt.Value(t, session.Turns[0].Content).Equal("고향은?")
		gt.Value(t, session.Turns[1].Content).Equal("부산입니다.")
		gt.Value(t, session.Turns[2].Role).Equal(types.RoleRespondent)
		gt.Value(t, session.Turns[3].Content).Equal("질문 1")

		prompt := env.llm.Requests("interview_question")[0].Prompt
		gt.String(t, prompt).Contains("응답자: 부산입니다.")
	})
}

func TestInterviewUseCase_Answer(t *testing.T) {
	t.Run("persists the answer and asks the next question", func(t *testing.T) {
		env := newTestEnv(t, &mockLLM{generateFn: numberedQuestions()})
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		result, err := env.uc.Interview.Answer(ctx, "author-1", session.ID, "  바닷가 마을에서 자랐어요.  ")
		gt.NoError(t, err).Required()
		gt.Value(t, result.Fragment.Question).Equal("질문 1")
		gt.Value(t, result.Fragment.Answer).Equal("바닷가 마을에서 자랐어요.")
		gt.Value(t, result.Session.CurrentQuestion).Equal("질문 2")
		gt.Value(t, result.Session.State).Equal(types.SessionStateAwaitingAnswer)
		gt.Array(t, result.Session.Turns).Length(3)

		fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(1)
	})

	t.Run("retrieved memories reach the interviewer", func(t *testing.T) {
		mock := &mockLLM{
			generateFn: numberedQuestions(),
			embedFn:    keywordEmbedder("바다"),
		}
		env := newTestEnv(t, mock)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		past, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{
			Question: "여름 방학에는?",
			Answer:   "바다에서 조개를 캤어요.",
		})
		gt.NoError(t, err).Required()
		env.waitEmbedded(t, past)

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()
		_, err = env.uc.Interview.Answer(ctx, "author-1", session.ID, "바다 근처에 살았어요.")
		gt.NoError(t, err).Required()

		reqs := env.llm.Requests("interview_question")
		gt.Array(t, reqs).Length(2).Required()
		gt.String(t, reqs[1].SystemPrompt).Contains("Q: 여름 방학에는?")
		gt.String(t, reqs[1].SystemPrompt).Contains("A: 바다에서 조개를 캤어요.")
		gt.Number(t, reqs[1].Params.MaxTokens).Equal(200)
	})

	t.Run("empty answer is rejected without side effects", func(t *testing.T) {
		env := newTestEnv(t, &mockLLM{generateFn: numberedQuestions()})
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		_, err = env.uc.Interview.Answer(ctx, "author-1", session.ID, "   ")
		gt.Error(t, err).Is(model.ErrValidation)

		fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(0)
	})

	t.Run("failed question keeps the fragment and allows Ask", func(t *testing.T) {
		var fail atomic.Bool
		questions := numberedQuestions()
		mock := &mockLLM{
			generateFn: func(ctx context.Context, req llm.Request) (string, error) {
				if fail.Load() {
					return "", errors.New("unavailable")
				}
				return questions(ctx, req)
			},
		}
		env := newTestEnv(t, mock)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		fail.Store(true)
		_, err = env.uc.Interview.Answer(ctx, "author-1", session.ID, "답변")
		gt.Value(t, err).NotNil()

		fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(1)

		current, err := env.uc.Interview.Get(ctx, "author-1", session.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, current.State).Equal(types.SessionStateStart)

		_, err = env.uc.Interview.Answer(ctx, "author-1", session.ID, "또 답변")
		gt.Error(t, err).Is(model.ErrSessionBusy)

		fail.Store(false)
		asked, err := env.uc.Interview.Ask(ctx, "author-1", session.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, asked.State).Equal(types.SessionStateAwaitingAnswer)
		gt.Value(t, asked.CurrentQuestion).Equal("질문 2")
	})

	t.Run("answer while generating is busy", func(t *testing.T) {
		started := make(chan struct{})
		unblock := make(chan struct{})
		var calls atomic.Int32
		mock := &mockLLM{
			generateFn: func(ctx context.Context, req llm.Request) (string, error) {
				if calls.Add(1) == 2 {
					close(started)
					<-unblock
				}
				return "다음 질문", nil
			},
		}
		env := newTestEnv(t, mock)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		done := make(chan error, 1)
		go func() {
			_, err := env.uc.Interview.Answer(ctx, "author-1", session.ID, "첫 답변")
			done <- err
		}()
		<-started

		_, err = env.uc.Interview.Answer(ctx, "author-1", session.ID, "두 번째 답변")
		gt.Error(t, err).Is(model.ErrSessionBusy)
		_, err = env.uc.Interview.Ask(ctx, "author-1", session.ID)
		gt.Error(t, err).Is(model.ErrSessionBusy)

		close(unblock)
		gt.NoError(t, <-done).Required()

		fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(1)
	})
}

func TestInterviewUseCase_Reset(t *testing.T) {
	t.Run("starts over and keeps fragments", func(t *testing.T) {
		env := newTestEnv(t, &mockLLM{generateFn: numberedQuestions()})
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()
		_, err = env.uc.Interview.Answer(ctx, "author-1", session.ID, "답변")
		gt.NoError(t, err).Required()

		reset, err := env.uc.Interview.Reset(ctx, "author-1", session.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, reset.Turns).Length(1)
		gt.Value(t, reset.CurrentQuestion).Equal("질문 3")

		fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
		gt.NoError(t, err).Required()
		gt.Array(t, fragments).Length(1)
	})

	t.Run("generation in flight is discarded", func(t *testing.T) {
		started := make(chan struct{})
		unblock := make(chan struct{})
		var calls atomic.Int32
		mock := &mockLLM{
			generateFn: func(ctx context.Context, req llm.Request) (string, error) {
				switch calls.Add(1) {
				case 2:
					close(started)
					<-unblock
					return "늦게 도착한 질문", nil
				case 3:
					return "새 첫 질문", nil
				}
				return "첫 질문", nil
			},
		}
		env := newTestEnv(t, mock)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		done := make(chan error, 1)
		go func() {
			_, err := env.uc.Interview.Answer(ctx, "author-1", session.ID, "답변")
			done <- err
		}()
		<-started

		reset, err := env.uc.Interview.Reset(ctx, "author-1", session.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, reset.CurrentQuestion).Equal("새 첫 질문")

		close(unblock)
		gt.Error(t, <-done).Is(model.ErrSessionBusy)

		current, err := env.uc.Interview.Get(ctx, "author-1", session.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, current.CurrentQuestion).Equal("새 첫 질문")
		gt.Array(t, current.Turns).Length(1)
		gt.Bool(t, strings.Contains(current.Turns[0].Content, "늦게")).False()
	})
}

func TestInterviewUseCase_SessionHandles(t *testing.T) {
	t.Run("sessions are scoped to their author", func(t *testing.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		_, err = env.uc.Interview.Get(ctx, "author-2", session.ID)
		gt.Error(t, err).Is(model.ErrNotFound)
		_, err = env.uc.Interview.Answer(ctx, "author-2", session.ID, "답변")
		gt.Error(t, err).Is(model.ErrNotFound)
		gt.Error(t, env.uc.Interview.Close(ctx, "author-2", session.ID)).Is(model.ErrNotFound)
	})

	t.Run("closed session is gone", func(t *testing.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		session, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()
		gt.NoError(t, env.uc.Interview.Close(ctx, "author-1", session.ID)).Required()

		_, err = env.uc.Interview.Get(ctx, "author-1", session.ID)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("session generating a question survives the idle sweep", func(t *testing.T) {
		var now atomic.Value
		now.Store(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
		clock := func() time.Time { return now.Load().(time.Time) }

		started := make(chan struct{})
		release := make(chan struct{})
		var calls atomic.Int32
		mock := &mockLLM{
			generateFn: func(ctx context.Context, req llm.Request) (string, error) {
				n := calls.Add(1)
				if n == 2 {
					close(started)
					<-release
				}
				return fmt.Sprintf("질문 %d", n), nil
			},
		}

		cfg := usecase.DefaultConfig()
		cfg.SessionIdleTTL = time.Hour
		cfg.QuestionTimeout = 0
		env := newTestEnv(t, mock, usecase.WithConfig(cfg), usecase.WithClock(clock))
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		busy, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		answered := make(chan error, 1)
		go func() {
			_, err := env.uc.Interview.Answer(ctx, "author-1", busy.ID, "할머니 댁 마당이요.")
			answered <- err
		}()
		<-started

		now.Store(clock().Add(2 * time.Hour))
		_, err = env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		close(release)
		gt.NoError(t, <-answered).Required()

		got, err := env.uc.Interview.Get(ctx, "author-1", busy.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.State).Equal(types.SessionStateAwaitingAnswer)
		gt.Value(t, got.CurrentQuestion).Equal("질문 2")
	})

	t.Run("idle sessions expire", func(t *testing.T) {
		var now atomic.Value
		now.Store(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
		clock := func() time.Time { return now.Load().(time.Time) }

		cfg := usecase.DefaultConfig()
		cfg.SessionIdleTTL = time.Hour
		env := newTestEnv(t, nil, usecase.WithConfig(cfg), usecase.WithClock(clock))
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		stale, err := env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		now.Store(clock().Add(2 * time.Hour))
		_, err = env.uc.Interview.Open(ctx, "author-1", project.ID, false)
		gt.NoError(t, err).Required()

		_, err = env.uc.Interview.Get(ctx, "author-1", stale.ID)
		gt.Error(t, err).Is(model.ErrNotFound)
	})
}
