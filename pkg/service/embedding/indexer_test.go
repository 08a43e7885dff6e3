package embedding_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/repository/memory"
	"github.com/secmon-lab/mnemosyne/pkg/service/embedding"
)

type stubEmbedder struct {
	err   error
	block chan struct{}
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.block != nil {
		<-e.block
	}
	if e.err != nil {
		return nil, e.err
	}
	v := make([]float32, model.EmbeddingDimension)
	v[0] = 1
	return v, nil
}

func createFragment(t *testing.T, repo *memory.Memory, answer string) *model.Fragment {
	t.Helper()
	f, err := repo.Fragment().Create(context.Background(), &model.Fragment{
		ProjectID: "project-1",
		AuthorID:  "author-1",
		Question:  "q",
		Answer:    answer,
	})
	gt.NoError(t, err).Required()
	return f
}

func TestIndexer_Dispatch(t *testing.T) {
	t.Run("stores the embedding", func(t *testing.T) {
		repo := memory.New()
		f := createFragment(t, repo, "감나무 아래에서")
		x := embedding.New(repo.Fragment(), &stubEmbedder{})

		res := <-x.Dispatch(context.Background(), f)
		gt.NoError(t, res.Err).Required()
		gt.Value(t, res.Value.FragmentID).Equal(f.ID)

		got, err := repo.Fragment().Get(context.Background(), f.AuthorID, f.ProjectID, f.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, got.Embedded).True()
		gt.Value(t, x.Failures()).Equal(int64(0))
	})

	t.Run("failure leaves the fragment intact and unembedded", func(t *testing.T) {
		repo := memory.New()
		f := createFragment(t, repo, "바닷가 이야기")
		x := embedding.New(repo.Fragment(), &stubEmbedder{err: model.ErrUpstreamService})

		res := <-x.Dispatch(context.Background(), f)
		gt.Error(t, res.Err).Is(model.ErrUpstreamService)
		gt.Value(t, x.Failures()).Equal(int64(1))

		got, err := repo.Fragment().Get(context.Background(), f.AuthorID, f.ProjectID, f.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Answer).Equal("바닷가 이야기")
		gt.Bool(t, got.Embedded).False()

		results, err := repo.Fragment().FindSimilar(context.Background(), model.SimilarityQuery{
			AuthorID:  f.AuthorID,
			ProjectID: f.ProjectID,
			Vector:    make([]float32, model.EmbeddingDimension),
			Threshold: -1,
			Limit:     10,
		})
		gt.NoError(t, err).Required()
		gt.Array(t, results).Length(0)
	})

	t.Run("caller cancellation does not abort indexing", func(t *testing.T) {
		repo := memory.New()
		f := createFragment(t, repo, "학교 운동장")
		block := make(chan struct{})
		x := embedding.New(repo.Fragment(), &stubEmbedder{block: block})

		ctx, cancel := context.WithCancel(context.Background())
		ch := x.Dispatch(ctx, f)
		cancel()
		close(block)

		res := <-ch
		gt.NoError(t, res.Err).Required()
		gt.Value(t, res.Value).NotNil()
	})

	t.Run("drops a vector computed for an outdated answer", func(t *testing.T) {
		repo := memory.New()
		f := createFragment(t, repo, "처음 답변")
		block := make(chan struct{})
		x := embedding.New(repo.Fragment(), &stubEmbedder{block: block})

		ch := x.Dispatch(context.Background(), f)

		edited := f.Copy()
		edited.Answer = "고친 답변"
		_, err := repo.Fragment().Update(context.Background(), edited, true)
		gt.NoError(t, err).Required()
		close(block)

		res := <-ch
		gt.NoError(t, res.Err).Required()
		gt.Value(t, res.Value).Nil()

		got, err := repo.Fragment().Get(context.Background(), f.AuthorID, f.ProjectID, f.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, got.Embedded).False()
	})
}
