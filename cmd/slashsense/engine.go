package main

import (
	"fmt"
	"path/filepath"

	"slashsense/internal/cascade"
	"slashsense/internal/config"
	"slashsense/internal/embedding"
	"slashsense/internal/lexical"
	"slashsense/internal/logging"
	"slashsense/internal/overlay"
	"slashsense/internal/registry"
	"slashsense/internal/routed"
	"slashsense/internal/telemetry"
)

// engine bundles everything a detection command needs.
type engine struct {
	registry    *registry.Registry
	coordinator *cascade.Coordinator
	store       *telemetry.SQLiteStore // nil when telemetry is off
	emitter     telemetry.Emitter
}

// buildEngine assembles the full detection pipeline from config. Components
// that cannot start (missing API key, unreachable backend) degrade to absent
// tiers rather than failing the build; only a broken registry is fatal.
func buildEngine(cfg *config.Config) (*engine, error) {
	reg := registry.New()
	if err := reg.Load(registrySources(cfg)...); err != nil {
		return nil, fmt.Errorf("registry build failed: %w", err)
	}
	specs := reg.All()
	logging.Boot("registry loaded: %d commands", len(specs))

	lex, err := lexical.NewMatcher(specs)
	if err != nil {
		return nil, fmt.Errorf("lexical matcher build failed: %w", err)
	}

	opts := []cascade.Option{}

	// Overlay
	overlayPath := workspacePath(cfg.Overlay.Path)
	ov, err := overlay.NewFromFile(overlayPath)
	if err != nil {
		logging.Get(logging.CategoryOverlay).Warn("overlay unavailable: %v", err)
	} else {
		opts = append(opts, cascade.WithOverlay(ov))
	}

	// Tier 2: embedding
	if cfg.Tiers.Embedding {
		embEng, err := embedding.NewEngine(embedding.Config{
			Provider:       cfg.Embedding.Provider,
			OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
			OllamaModel:    cfg.Embedding.OllamaModel,
			GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
			GenAIModel:     cfg.Embedding.GenAIModel,
		})
		if err != nil {
			logging.Get(logging.CategoryEmbedding).Warn("embedding tier disabled: %v", err)
		} else {
			idx := embedding.NewPrototypeIndex(embEng, specs, cfg.WarmupTimeout(), 0)
			opts = append(opts, cascade.WithEmbedding(idx))
		}
	}

	// Tier 3: routed fallback
	if cfg.Tiers.Routed {
		router, err := buildRouter(cfg)
		if err != nil {
			logging.Get(logging.CategoryRouted).Warn("routed tier disabled: %v", err)
		} else {
			m := routed.NewMatcher(router, specs, cfg.RoutedTimeout(), 0)
			opts = append(opts, cascade.WithRouted(m))
		}
	}

	// Telemetry
	eng := &engine{registry: reg, emitter: telemetry.NopEmitter{}}
	if cfg.Telemetry.Enabled {
		store, err := telemetry.NewSQLiteStore(workspacePath(cfg.Telemetry.DatabasePath))
		if err != nil {
			logging.Get(logging.CategoryTelemetry).Warn("telemetry store unavailable: %v", err)
			eng.emitter = telemetry.LogEmitter{}
		} else {
			eng.store = store
			eng.emitter = telemetry.MultiEmitter{store, telemetry.LogEmitter{}}
		}
	}
	opts = append(opts, cascade.WithEmitter(eng.emitter))

	eng.coordinator = cascade.New(lex, cfg.Thresholds, opts...)
	return eng, nil
}

func (e *engine) close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func buildRouter(cfg *config.Config) (routed.Router, error) {
	switch cfg.Routed.Provider {
	case "http":
		return routed.NewHTTPRouter(cfg.Routed.Endpoint)
	case "genai", "":
		return routed.NewGeminiRouter(cfg.Routed.APIKey, cfg.Routed.Model)
	default:
		return nil, fmt.Errorf("unknown routed provider %q", cfg.Routed.Provider)
	}
}

// registrySources builds the configured declaration sources in precedence
// order: markdown command dirs first, then the mappings file, so explicit
// mappings win on id collisions.
func registrySources(cfg *config.Config) []registry.CommandSource {
	var sources []registry.CommandSource
	for _, dir := range cfg.Registry.MarkdownDirs {
		sources = append(sources, registry.MarkdownDirSource{Dir: workspacePath(dir)})
	}
	if cfg.Registry.MappingsPath != "" {
		sources = append(sources, registry.MappingsJSONSource{Path: workspacePath(cfg.Registry.MappingsPath)})
	}
	if len(sources) == 0 {
		// Default workspace layout.
		sources = append(sources,
			registry.MarkdownDirSource{Dir: workspacePath(filepath.Join(".slashsense", "commands"))},
			registry.MappingsJSONSource{Path: workspacePath(filepath.Join(".slashsense", "intent_mappings.json"))},
		)
	}
	return sources
}

// workspacePath anchors a relative config path at the workspace root.
func workspacePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}
