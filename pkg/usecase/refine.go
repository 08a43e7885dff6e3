package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/domain/types"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
)

type RefineUseCase struct {
	llm llm.Service
	cfg Config
}

func NewRefineUseCase(llmService llm.Service, cfg Config) *RefineUseCase {
	return &RefineUseCase{
		llm: llmService,
		cfg: cfg,
	}
}

type refineSystemData struct {
	Tone string
}

type refineUserData struct {
	Text string
}

// Refine corrects and restyles text in the requested tone. An empty tone means warm.
func (uc *RefineUseCase) Refine(ctx context.Context, text string, tone types.Tone) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", goerr.Wrap(model.ErrValidation, "text is required")
	}
	tone = tone.Normalize()
	if !tone.IsValid() {
		return "", goerr.Wrap(model.ErrValidation, "invalid tone", goerr.V("tone", tone))
	}

	system, err := renderPrompt(refineSystem, refineSystemData{Tone: tone.Description()})
	if err != nil {
		return "", err
	}
	prompt, err := renderPrompt(refineUser, refineUserData{Text: text})
	if err != nil {
		return "", err
	}

	refined, err := uc.llm.Generate(ctx, llm.Request{
		Name:         "refine",
		SystemPrompt: system,
		Prompt:       prompt,
		Params:       uc.cfg.Refine,
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to refine text")
	}

	refined = strings.TrimSpace(refined)
	if refined == "" {
		return "", goerr.Wrap(model.ErrUpstreamService, "refined text is empty")
	}
	return refined, nil
}
