package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/echanatwell/ArxivAgent/agent/agents/orchestrator"
	contractx "github.com/echanatwell/ArxivAgent/agent/contract"
	"github.com/echanatwell/ArxivAgent/agent/corpus"
	llmx "github.com/echanatwell/ArxivAgent/agent/llm"
	runtimex "github.com/echanatwell/ArxivAgent/agent/runtime"
	statex "github.com/echanatwell/ArxivAgent/agent/state"
	"github.com/echanatwell/ArxivAgent/pkg/arxiv"
	configx "github.com/echanatwell/ArxivAgent/pkg/config"
	logx "github.com/echanatwell/ArxivAgent/pkg/logger"
	_ "github.com/echanatwell/ArxivAgent/pkg/logger/autoload"
)

var (
	queryFlag  = flag.String("query", "", "keywords to survey on arXiv")
	indexFlag  = flag.Int("index", -1, "position of a pre-ingested document set to survey")
	ingestFlag = flag.String("ingest", "", "path to a YAML manifest of document sets to ingest")
)

func main() {
	os.Exit(run())
}

func run() int {
	// Loading the first config parses flags, including -env.
	logCfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*logCfg)
	logger := logx.Component("cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := strings.TrimSpace(*ingestFlag); path != "" {
		if err := ingest(ctx, path); err != nil {
			logger.Error().Err(err).Str("manifest", path).Msg("ingest failed")
			return 1
		}
		return 0
	}

	query := strings.TrimSpace(*queryFlag)
	switch {
	case query != "" && *indexFlag >= 0:
		fmt.Fprintln(os.Stderr, "use either -query or -index, not both")
		return 2
	case query == "" && *indexFlag < 0:
		fmt.Fprintln(os.Stderr, "usage: arxivagent -query \"<keywords>\" | -index N | -ingest manifest.yaml")
		return 2
	}

	appCfg := configx.MustNew[runtimex.AppConfig]("APP")
	llmCfg := configx.MustNew[llmx.Config]("LLM")

	deps := runtimex.Deps{App: *appCfg, LLM: *llmCfg, Cache: newCache(logger)}

	mode := runtimex.ModeKeywords
	req := orchestrator.Request{Query: query}
	if query != "" {
		deps.Search = arxiv.NewClient(*configx.MustNew[arxiv.Config]("ARXIV"))
	} else {
		store, err := corpus.Open(*configx.MustNew[corpus.Config]("CORPUS"))
		if err != nil {
			logger.Error().Err(err).Msg("open corpus")
			return 1
		}
		defer store.Close()

		set, err := store.DocumentSet(ctx, *indexFlag)
		if err != nil {
			logger.Error().Err(err).Int("index", *indexFlag).Msg("load document set")
			return 1
		}
		mode = runtimex.ModeIndex
		deps.Corpus = store
		req = orchestrator.Request{Query: strconv.Itoa(*indexFlag), Keywords: set.Topic}
	}

	rt, err := runtimex.New(ctx, mode, deps)
	if err != nil {
		logger.Error().Err(err).Str("mode", string(mode)).Msg("setup failed")
		return 1
	}

	res, err := rt.Run(ctx, req)
	if err != nil {
		var runErr *orchestrator.RunError
		if errors.As(err, &runErr) {
			fmt.Fprintf(os.Stderr, "survey failed: kind=%s turn=%d: %v\n", runErr.Kind, runErr.Turn, runErr.Err)
		} else {
			fmt.Fprintf(os.Stderr, "survey failed: %v\n", err)
		}
		return 1
	}

	fmt.Println(res.Answer)
	logger.Info().Str("run_id", res.RunID).Int("turns", res.Turns).Int("restarts", res.Restarts).Msg("survey complete")
	return 0
}

func ingest(ctx context.Context, manifest string) error {
	sets, err := corpus.LoadManifest(manifest)
	if err != nil {
		return err
	}

	store, err := corpus.Open(*configx.MustNew[corpus.Config]("CORPUS"))
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		return err
	}
	if err := store.Ingest(ctx, sets); err != nil {
		return err
	}

	positions, err := store.Positions(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d document sets; stored positions: %v\n", len(sets), positions)
	return nil
}

func newCache(logger zerolog.Logger) contractx.SummaryCache {
	cfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH")
	if !cfg.Enabled() {
		return nil
	}
	store, err := statex.NewUpstashRedisStore(*cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("summary cache disabled")
		return nil
	}
	return store
}
