package executors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/swarmcore/pkg/domain"
	"github.com/aescanero/swarmcore/pkg/ports"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Phase is one stage of project modernization
type Phase string

const (
	PhaseTypeInference    Phase = "TYPE_INFERENCE"
	PhaseModularization   Phase = "MODULARIZATION"
	PhaseLogicTranslation Phase = "LOGIC_TRANSLATION"
)

// Phases lists the modernization stages in execution order
var Phases = []Phase{PhaseTypeInference, PhaseModularization, PhaseLogicTranslation}

// Task fields read by the translation executor
const (
	TaskFieldFile   = "file"
	TaskFieldSource = "source"
)

// DefaultTranslationCacheSize bounds the per-executor output cache
const DefaultTranslationCacheSize = 1024

var errMissingFile = errors.New("task has no file")

var stubOutputs = map[Phase]string{
	PhaseTypeInference:    "interface Data { value: number; }",
	PhaseModularization:   "export const data = ...",
	PhaseLogicTranslation: "const optimizedFunc = () => ...",
}

var phaseInstructions = map[Phase]string{
	PhaseTypeInference:    "Infer TypeScript types for the legacy JavaScript below. Reply with type declarations only.",
	PhaseModularization:   "Convert the CommonJS module below to ES modules. Reply with the rewritten module only.",
	PhaseLogicTranslation: "Modernize the logic below (var to const, callbacks to async/await). Reply with code only.",
}

// TranslationOutput is the payload of a translation task
type TranslationOutput struct {
	Task   Phase  `json:"task"`
	File   string `json:"file"`
	Result string `json:"result"`
	Cached bool   `json:"cached,omitempty"`
}

// Translation runs one modernization phase per task. Without an LLM client
// it returns fixed stub output.
type Translation struct {
	phase Phase
	llm   ports.LLMClient
	cache *lru.Cache[string, string]
}

// NewTranslation creates a translation executor for phase. llm may be nil.
func NewTranslation(phase Phase, llm ports.LLMClient, cacheSize int) (*Translation, error) {
	if _, ok := stubOutputs[phase]; !ok {
		return nil, fmt.Errorf("unknown translation phase: %s", phase)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultTranslationCacheSize
	}

	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create translation cache: %w", err)
	}

	return &Translation{
		phase: phase,
		llm:   llm,
		cache: cache,
	}, nil
}

// Phase returns the phase this executor runs
func (t *Translation) Phase() Phase {
	return t.phase
}

// Execute implements ports.TaskExecutor
func (t *Translation) Execute(ctx context.Context, task domain.Task) (interface{}, error) {
	file := task.String(TaskFieldFile)
	if file == "" {
		return nil, errMissingFile
	}

	if t.llm == nil {
		return TranslationOutput{Task: t.phase, File: file, Result: stubOutputs[t.phase]}, nil
	}

	source := task.String(TaskFieldSource)
	key := string(t.phase) + "\x00" + file + "\x00" + source
	if cached, ok := t.cache.Get(key); ok {
		return TranslationOutput{Task: t.phase, File: file, Result: cached, Cached: true}, nil
	}

	prompt := fmt.Sprintf("File: %s\n\n%s", file, source)
	out, err := t.llm.Complete(ctx, phaseInstructions[t.phase], prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to translate %s: %w", file, err)
	}
	out = strings.TrimSpace(out)

	t.cache.Add(key, out)
	return TranslationOutput{Task: t.phase, File: file, Result: out}, nil
}
