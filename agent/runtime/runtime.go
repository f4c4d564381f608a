package runtime

import (
	"context"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	openaisdk "github.com/openai/openai-go"

	classifierx "github.com/echanatwell/ArxivAgent/agent/agents/classifier"
	completionx "github.com/echanatwell/ArxivAgent/agent/agents/completion"
	controllerx "github.com/echanatwell/ArxivAgent/agent/agents/controller"
	"github.com/echanatwell/ArxivAgent/agent/agents/orchestrator"
	summarizerx "github.com/echanatwell/ArxivAgent/agent/agents/summarizer"
	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	dispatchx "github.com/echanatwell/ArxivAgent/agent/dispatch"
	llmx "github.com/echanatwell/ArxivAgent/agent/llm"
	promptx "github.com/echanatwell/ArxivAgent/agent/prompt"
	qualityx "github.com/echanatwell/ArxivAgent/agent/quality"
	toolx "github.com/echanatwell/ArxivAgent/agent/tool"
	openrouterx "github.com/echanatwell/ArxivAgent/pkg/openrouter"
)

type Mode string

const (
	// ModeKeywords searches arXiv for the user's keywords.
	ModeKeywords Mode = "keywords"
	// ModeIndex surveys a pre-ingested document set selected by position.
	ModeIndex Mode = "index"
)

type AppConfig struct {
	MaxTurns        int           `envconfig:"MAX_TURNS" split_words:"true" default:"12"`
	FanoutWorkers   int           `envconfig:"FANOUT_WORKERS" split_words:"true" default:"1"`
	SummaryMinChars int           `envconfig:"SUMMARY_MIN_CHARS" split_words:"true" default:"400"`
	SummaryMaxChars int           `envconfig:"SUMMARY_MAX_CHARS" split_words:"true" default:"1500"`
	CallTimeout     time.Duration `envconfig:"CALL_TIMEOUT" split_words:"true" default:"2m"`
	MaxResultsCap   int           `envconfig:"MAX_RESULTS_CAP" split_words:"true" default:"5"`
	// RestartThreshold is the number of unacceptable summaries in one tool
	// batch that abandons it.
	RestartThreshold int `envconfig:"RESTART_THRESHOLD" split_words:"true" default:"2"`
}

func (c AppConfig) Validate() error {
	if c.MaxTurns <= 0 {
		return fmt.Errorf("%w: max turns must be > 0", contractx.ErrValidation)
	}
	if c.FanoutWorkers <= 0 {
		return fmt.Errorf("%w: fan-out workers must be > 0", contractx.ErrValidation)
	}
	if c.SummaryMinChars < 0 || c.SummaryMaxChars <= 0 || c.SummaryMinChars > c.SummaryMaxChars {
		return fmt.Errorf("%w: invalid summary bounds %d..%d", contractx.ErrValidation, c.SummaryMinChars, c.SummaryMaxChars)
	}
	if c.CallTimeout < 0 {
		return fmt.Errorf("%w: call timeout must be >= 0", contractx.ErrValidation)
	}
	if c.MaxResultsCap <= 0 {
		return fmt.Errorf("%w: max results cap must be > 0", contractx.ErrValidation)
	}
	if c.RestartThreshold <= 0 {
		return fmt.Errorf("%w: restart threshold must be > 0", contractx.ErrValidation)
	}
	return nil
}

// ModelFactory builds the chat model serving a role.
type ModelFactory func(ctx context.Context, role contractx.ModelRole) (einomodel.ToolCallingChatModel, error)

type Deps struct {
	App AppConfig
	LLM llmx.Config

	// Search is required in keyword mode.
	Search contractx.SearchBackend
	// Corpus is required in index mode.
	Corpus contractx.CorpusStore
	Cache  contractx.SummaryCache

	// Models and ClassifierClient default to OpenRouter clients built from LLM.
	Models           ModelFactory
	ClassifierClient *openaisdk.Client
}

type Runtime struct {
	Mode         Mode
	Registry     *toolx.Registry
	Orchestrator *orchestrator.Orchestrator
}

func (r *Runtime) Run(ctx context.Context, req orchestrator.Request) (orchestrator.Result, error) {
	return r.Orchestrator.Run(ctx, req)
}

func New(ctx context.Context, mode Mode, deps Deps) (*Runtime, error) {
	if err := deps.App.Validate(); err != nil {
		return nil, err
	}
	if err := deps.LLM.Validate(); err != nil {
		return nil, err
	}

	models := deps.Models
	if models == nil {
		models = openRouterModels(deps.LLM)
	}

	prompts := promptx.LoadPromptSet()

	agentModel, err := models(ctx, contractx.ModelRoleAgent)
	if err != nil {
		return nil, fmt.Errorf("%w: create agent model: %v", contractx.ErrModelInvoke, err)
	}
	summarizerModel, err := models(ctx, contractx.ModelRoleSummarizer)
	if err != nil {
		return nil, fmt.Errorf("%w: create summarizer model: %v", contractx.ErrModelInvoke, err)
	}

	timeout := completionx.WithTimeout(deps.App.CallTimeout)
	summaryCompleter, err := completionx.New(ctx, "summarizer", summarizerModel,
		prompts.Summarizer(deps.App.SummaryMinChars, deps.App.SummaryMaxChars), timeout)
	if err != nil {
		return nil, err
	}
	overview, err := completionx.New(ctx, toolx.ToolGeneralOverview, summarizerModel, prompts.Overview, timeout)
	if err != nil {
		return nil, err
	}

	var summarizerOpts []summarizerx.Option
	if deps.Cache != nil {
		summarizerOpts = append(summarizerOpts, summarizerx.WithCache(deps.Cache))
	}
	summarizer, err := summarizerx.New(summaryCompleter, deps.App.SummaryMinChars, deps.App.SummaryMaxChars, summarizerOpts...)
	if err != nil {
		return nil, err
	}

	gate, err := newGate(deps, prompts.Quality)
	if err != nil {
		return nil, err
	}

	var (
		tools        []contractx.Tool
		systemPrompt string
		ungated      []string
	)
	switch mode {
	case ModeKeywords:
		if deps.Search == nil {
			return nil, fmt.Errorf("%w: search backend is required in %s mode", contractx.ErrValidation, mode)
		}
		rewrite, err := completionx.New(ctx, toolx.ToolRewriteQuery, summarizerModel, prompts.Rewrite, timeout)
		if err != nil {
			return nil, err
		}
		tools = []contractx.Tool{
			toolx.NewSearchArticles(deps.Search, deps.App.MaxResultsCap),
			toolx.NewRewriteQuery(rewrite),
			toolx.NewGeneralOverview(overview),
		}
		systemPrompt = prompts.Agent
	case ModeIndex:
		if deps.Corpus == nil {
			return nil, fmt.Errorf("%w: corpus store is required in %s mode", contractx.ErrValidation, mode)
		}
		tools = []contractx.Tool{
			toolx.NewLoadDocumentSet(deps.Corpus),
			toolx.NewGeneralOverview(overview),
		}
		systemPrompt = prompts.AgentIndex
		// Fixed sets are summarized without quality gating.
		ungated = append(ungated, toolx.ToolLoadDocumentSet)
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", contractx.ErrValidation, mode)
	}

	registry, err := toolx.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}

	controller, err := controllerx.New(ctx, agentModel, systemPrompt, registry.Infos())
	if err != nil {
		return nil, err
	}

	dispatcher, err := dispatchx.New(registry, summarizer, gate,
		dispatchx.WithWorkers(deps.App.FanoutWorkers),
		dispatchx.WithRestartThreshold(deps.App.RestartThreshold),
		dispatchx.WithUngatedTools(ungated...),
		dispatchx.WithCallTimeout(deps.App.CallTimeout),
		dispatchx.WithRestartPrompt(prompts.Restart),
	)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(controller, dispatcher, orchestrator.Config{MaxTurns: deps.App.MaxTurns})
	if err != nil {
		return nil, err
	}

	return &Runtime{Mode: mode, Registry: registry, Orchestrator: orch}, nil
}

func newGate(deps Deps, rubric string) (*qualityx.Gate, error) {
	cfg := deps.LLM.OpenRouterFor(contractx.ModelRoleClassifier)

	client := deps.ClassifierClient
	if client == nil {
		client = openrouterx.NewClient(cfg)
	}

	maxTokens := 0
	if cfg.MaxCompletionToken != nil {
		maxTokens = *cfg.MaxCompletionToken
	}
	classifier, err := classifierx.New(client, classifierx.Config{
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: cfg.Temperature,
		Timeout:     deps.App.CallTimeout,
	})
	if err != nil {
		return nil, err
	}
	return qualityx.NewGate(classifier, rubric)
}

func openRouterModels(cfg llmx.Config) ModelFactory {
	return func(ctx context.Context, role contractx.ModelRole) (einomodel.ToolCallingChatModel, error) {
		roleCfg := cfg.OpenRouterFor(role)
		return roleCfg.New(ctx)
	}
}
