package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"github.com/secmon-lab/mnemosyne/pkg/service/llm"
	"github.com/secmon-lab/mnemosyne/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// AppConfig holds the tuning file path and, once loaded, its content
type AppConfig struct {
	path string
	file *AppFile
}

// AppFile is the TOML tuning file. Every field is optional; zero values keep the defaults.
type AppFile struct {
	Interview InterviewSection `toml:"interview"`
	Synthesis SynthesisSection `toml:"synthesis"`
	Refine    GenerationParams `toml:"refine"`
	Reindex   ReindexSection   `toml:"reindex"`
	Outline   []OutlineItem    `toml:"outline"`
}

type InterviewSection struct {
	SeedTopic           string           `toml:"seed_topic"`
	RecentAnswers       int              `toml:"recent_answers"`
	RetrievalLimit      int              `toml:"retrieval_limit"`
	SimilarityThreshold *float64         `toml:"similarity_threshold"`
	Timeout             string           `toml:"timeout"`
	SessionIdleTTL      string           `toml:"session_idle_ttl"`
	Question            GenerationParams `toml:"question"`
}

type SynthesisSection struct {
	Timeout string `toml:"timeout"`
	GenerationParams
}

type ReindexSection struct {
	Concurrency int `toml:"concurrency"`
}

type GenerationParams struct {
	Temperature *float64 `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
}

type OutlineItem struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

func (p GenerationParams) validate(section string) error {
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		return goerr.Wrap(ErrInvalidConfig, "temperature must be between 0 and 2", goerr.V(FieldKey, section+".temperature"))
	}
	if p.MaxTokens < 0 {
		return goerr.Wrap(ErrInvalidConfig, "max_tokens must not be negative", goerr.V(FieldKey, section+".max_tokens"))
	}
	return nil
}

func (p GenerationParams) apply(dst *llm.Params) {
	if p.Temperature != nil {
		dst.Temperature = *p.Temperature
	}
	if p.MaxTokens > 0 {
		dst.MaxTokens = p.MaxTokens
	}
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, goerr.Wrap(ErrInvalidConfig, "invalid duration",
			goerr.V(FieldKey, field),
			goerr.V("value", value),
		)
	}
	return d, nil
}

// Validate checks ranges and formats of the file
func (f *AppFile) Validate() error {
	if f.Interview.RecentAnswers < 0 {
		return goerr.Wrap(ErrInvalidConfig, "recent_answers must not be negative", goerr.V(FieldKey, "interview.recent_answers"))
	}
	if f.Interview.RetrievalLimit < 0 {
		return goerr.Wrap(ErrInvalidConfig, "retrieval_limit must not be negative", goerr.V(FieldKey, "interview.retrieval_limit"))
	}
	if t := f.Interview.SimilarityThreshold; t != nil && (*t < -1 || *t >= 1) {
		return goerr.Wrap(ErrInvalidConfig, "similarity_threshold must be in [-1, 1)", goerr.V(FieldKey, "interview.similarity_threshold"))
	}
	if f.Reindex.Concurrency < 0 {
		return goerr.Wrap(ErrInvalidConfig, "concurrency must not be negative", goerr.V(FieldKey, "reindex.concurrency"))
	}

	durations := map[string]string{
		"interview.timeout":          f.Interview.Timeout,
		"interview.session_idle_ttl": f.Interview.SessionIdleTTL,
		"synthesis.timeout":          f.Synthesis.Timeout,
	}
	for field, value := range durations {
		if _, err := parseDuration(field, value); err != nil {
			return err
		}
	}

	if err := f.Interview.Question.validate("interview.question"); err != nil {
		return err
	}
	if err := f.Synthesis.GenerationParams.validate("synthesis"); err != nil {
		return err
	}
	if err := f.Refine.validate("refine"); err != nil {
		return err
	}

	for i, item := range f.Outline {
		if strings.TrimSpace(item.Title) == "" {
			return goerr.Wrap(ErrInvalidConfig, "outline title is required", goerr.V("index", i))
		}
	}
	return nil
}

// UseCaseConfig overlays the file on top of usecase.DefaultConfig
func (f *AppFile) UseCaseConfig() usecase.Config {
	cfg := usecase.DefaultConfig()
	if f == nil {
		return cfg
	}

	if f.Interview.SeedTopic != "" {
		cfg.SeedTopic = f.Interview.SeedTopic
	}
	if f.Interview.RecentAnswers > 0 {
		cfg.RecentAnswers = f.Interview.RecentAnswers
	}
	if f.Interview.RetrievalLimit > 0 {
		cfg.RetrievalLimit = f.Interview.RetrievalLimit
	}
	if f.Interview.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *f.Interview.SimilarityThreshold
	}
	// Durations were checked by Validate
	if d, _ := parseDuration("interview.timeout", f.Interview.Timeout); d > 0 {
		cfg.QuestionTimeout = d
	}
	if d, _ := parseDuration("interview.session_idle_ttl", f.Interview.SessionIdleTTL); d > 0 {
		cfg.SessionIdleTTL = d
	}
	if d, _ := parseDuration("synthesis.timeout", f.Synthesis.Timeout); d > 0 {
		cfg.SynthesisTimeout = d
	}
	f.Interview.Question.apply(&cfg.Question)
	f.Synthesis.GenerationParams.apply(&cfg.Synthesis)
	f.Refine.apply(&cfg.Refine)
	if f.Reindex.Concurrency > 0 {
		cfg.ReindexConcurrency = f.Reindex.Concurrency
	}

	if len(f.Outline) > 0 {
		cfg.Outline = make([]model.OutlineItem, len(f.Outline))
		for i, item := range f.Outline {
			cfg.Outline[i] = model.OutlineItem{
				Title:       item.Title,
				Description: item.Description,
				Order:       i + 1,
			}
		}
	}
	return cfg
}

// LoadAppFile loads and validates the tuning file
func LoadAppFile(path string) (*AppFile, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "config file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var file AppFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config",
			goerr.V(ConfigPathKey, path),
			goerr.V("cause", err.Error()),
		)
	}

	if err := file.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}
	return &file, nil
}

// Flags returns CLI flags for the tuning file
func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML tuning file (optional)",
			Sources:     cli.EnvVars("MNEMOSYNE_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Path returns the configured file path
func (a *AppConfig) Path() string {
	return a.path
}

// Configure loads the file when a path is set and returns the use case configuration
func (a *AppConfig) Configure() (usecase.Config, error) {
	if a.path == "" {
		return usecase.DefaultConfig(), nil
	}

	file, err := LoadAppFile(a.path)
	if err != nil {
		return usecase.Config{}, err
	}
	a.file = file
	return file.UseCaseConfig(), nil
}
