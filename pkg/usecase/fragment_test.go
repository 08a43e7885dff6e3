package usecase_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
)

func TestFragmentUseCase_CreateFragment(t *testing.T) {
	t.Run("stores the fragment and embeds it in the background", func(t *testing.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		f, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{
			Question: "고향은 어디인가요?",
			Answer:   "  부산 바닷가 마을입니다.  ",
		})
		gt.NoError(t, err).Required()
		gt.Value(t, f.Answer).Equal("부산 바닷가 마을입니다.")

		env.waitEmbedded(t, f)
	})

	t.Run("embedding failure does not fail the write", func(t *testing.T) {
		mock := &mockLLM{
			embedFn: func(ctx context.Context, text string) ([]float32, error) {
				return nil, errors.New("quota exceeded")
			},
		}
		env := newTestEnv(t, mock)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		f, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: "메모"})
		gt.NoError(t, err).Required()

		got, err := env.uc.Fragment.GetFragment(ctx, "author-1", project.ID, f.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Answer).Equal("메모")
	})

	t.Run("empty answer is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		project := env.createProject(t, "author-1")

		_, err := env.uc.Fragment.CreateFragment(context.Background(), "author-1", project.ID, usecase.FragmentInput{Question: "질문"})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("unknown project", func(t *testing.T) {
		env := newTestEnv(t, nil)

		_, err := env.uc.Fragment.CreateFragment(context.Background(), "author-1", model.NewProjectID(), usecase.FragmentInput{Answer: "메모"})
		gt.Error(t, err).Is(model.ErrNotFound)
	})
}

func TestFragmentUseCase_ListFragments(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	project := env.createProject(t, "author-1")

	for _, answer := range []string{"첫째", "둘째", "셋째"} {
		_, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: answer})
		gt.NoError(t, err).Required()
	}

	fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
	gt.NoError(t, err).Required()
	gt.Array(t, fragments).Length(3).Required()
	gt.Value(t, fragments[0].Answer).Equal("셋째")
	gt.Value(t, fragments[2].Answer).Equal("첫째")

	_, err = env.uc.Fragment.ListFragments(ctx, "author-2", project.ID)
	gt.Error(t, err).Is(model.ErrNotFound)
}

func TestFragmentUseCase_UpdateFragment(t *testing.T) {
	t.Run("changed answer is re-embedded", func(t *testing.T) {
		var calls atomic.Int32
		mock := &mockLLM{
			embedFn: func(ctx context.Context, text string) ([]float32, error) {
				calls.Add(1)
				return unitVector(0), nil
			},
		}
		env := newTestEnv(t, mock)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		f, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: "처음"})
		gt.NoError(t, err).Required()
		env.waitEmbedded(t, f)

		answer := "고쳐 쓴 답변"
		updated, err := env.uc.Fragment.UpdateFragment(ctx, "author-1", project.ID, f.ID, model.FragmentUpdate{Answer: &answer})
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Answer).Equal(answer)

		env.waitEmbedded(t, updated)
		gt.Bool(t, calls.Load() >= 2).True()
	})

	t.Run("emptying the answer is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()
		project := env.createProject(t, "author-1")

		f, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: "처음"})
		gt.NoError(t, err).Required()

		empty := "  "
		_, err = env.uc.Fragment.UpdateFragment(ctx, "author-1", project.ID, f.ID, model.FragmentUpdate{Answer: &empty})
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestFragmentUseCase_DeleteFragment(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	project := env.createProject(t, "author-1")

	f, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: "지울 메모"})
	gt.NoError(t, err).Required()
	env.waitEmbedded(t, f)

	gt.Error(t, env.uc.Fragment.DeleteFragment(ctx, "author-2", project.ID, f.ID)).Is(model.ErrNotFound)
	gt.NoError(t, env.uc.Fragment.DeleteFragment(ctx, "author-1", project.ID, f.ID)).Required()

	_, err = env.uc.Fragment.GetFragment(ctx, "author-1", project.ID, f.ID)
	gt.Error(t, err).Is(model.ErrNotFound)

	results, err := env.uc.Fragment.Search(ctx, "author-1", project.ID, "지울 메모", 5)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(0)
}

func TestFragmentUseCase_Reindex(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	mock := &mockLLM{
		embedFn: func(ctx context.Context, text string) ([]float32, error) {
			if failing.Load() {
				return nil, errors.New("embedding service down")
			}
			return unitVector(0), nil
		},
	}
	env := newTestEnv(t, mock)
	ctx := context.Background()
	project := env.createProject(t, "author-1")

	for _, answer := range []string{"하나", "둘", "셋"} {
		_, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{Answer: answer})
		gt.NoError(t, err).Required()
	}

	failing.Store(false)
	result, err := env.uc.Fragment.Reindex(ctx, "author-1", project.ID)
	gt.NoError(t, err).Required()
	gt.Number(t, result.Failed).Equal(0)
	gt.Number(t, result.Indexed).Equal(result.Pending)

	result, err = env.uc.Fragment.Reindex(ctx, "author-1", project.ID)
	gt.NoError(t, err).Required()
	gt.Number(t, result.Pending).Equal(0)

	fragments, err := env.uc.Fragment.ListFragments(ctx, "author-1", project.ID)
	gt.NoError(t, err).Required()
	for _, f := range fragments {
		gt.Bool(t, f.Embedded).True()
	}
}

func TestFragmentUseCase_Search(t *testing.T) {
	mock := &mockLLM{embedFn: keywordEmbedder("바다", "학교")}
	env := newTestEnv(t, mock)
	ctx := context.Background()
	project := env.createProject(t, "author-1")

	sea, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{
		Question: "어릴 적 놀던 곳은?",
		Answer:   "매일 바다에서 헤엄쳤어요.",
	})
	gt.NoError(t, err).Required()
	school, err := env.uc.Fragment.CreateFragment(ctx, "author-1", project.ID, usecase.FragmentInput{
		Answer: "학교 운동장이 넓었어요.",
	})
	gt.NoError(t, err).Required()
	env.waitEmbedded(t, sea)
	env.waitEmbedded(t, school)

	results, err := env.uc.Fragment.Search(ctx, "author-1", project.ID, "바다 이야기", 3)
	gt.NoError(t, err).Required()
	gt.Array(t, results).Length(1).Required()
	gt.Value(t, results[0].FragmentID).Equal(sea.ID)
	gt.Bool(t, results[0].Similarity > 0.5).True()

	results, err = env.uc.Fragment.Search(ctx, "author-2", project.ID, "바다 이야기", 3)
	gt.Error(t, err).Is(model.ErrNotFound)
	gt.Value(t, results).Nil()
}
