package postprocessors

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/pdfqa/internal/core/domain"
	"github.com/custodia-labs/pdfqa/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from stage settings.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Stage names a processor and the settings to build it with.
type Stage struct {
	Name   string
	Config map[string]any
}

// Registry maps processor names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a builder. The name should match the processor's Name().
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a processor by name.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown processor: %s", name)
	}
	return builder(cfg)
}

// Names returns the registered processor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildPipeline builds one processor per stage and chains them.
func (r *Registry) BuildPipeline(stages []Stage) (*Pipeline, error) {
	p := NewPipeline()
	for _, stage := range stages {
		processor, err := r.Build(stage.Name, stage.Config)
		if err != nil {
			return nil, fmt.Errorf("building stage %s: %w", stage.Name, err)
		}
		p.Add(processor)
	}
	return p, nil
}

// StagesFromConfig converts a pipeline configuration into stages.
func StagesFromConfig(cfg domain.PipelineConfig) []Stage {
	stages := make([]Stage, 0, len(cfg.Processors))
	for _, name := range cfg.Processors {
		stages = append(stages, Stage{Name: name, Config: cfg.ProcessorConfigs[name]})
	}
	return stages
}
