package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ChunkingConfig overrides the chunk window.
type ChunkingConfig struct {
	MaxChunkLength *int `yaml:"max_chunk_length"`
	OverlapLength  *int `yaml:"overlap_length"`
}

// RetrievalConfig overrides how many chunks feed each prompt.
type RetrievalConfig struct {
	TopK *int `yaml:"top_k"`
}

// PromptConfig replaces the prompt template. It must reference
// {{.Context}} and {{.Question}}.
type PromptConfig struct {
	Template string `yaml:"template"`
}

// PipelineFile is the optional YAML file named by PIPELINE_CONFIG.
// Fields left out keep their environment values.
type PipelineFile struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
}

// LoadPipelineFile reads and decodes a pipeline file. Unknown keys are rejected.
func LoadPipelineFile(path string) (*PipelineFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}
	defer f.Close()

	var pf PipelineFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("pipeline config %s: %w", path, err)
	}
	return &pf, nil
}

// Apply copies the set fields onto cfg.
func (pf *PipelineFile) Apply(cfg *Config) {
	if pf.Chunking.MaxChunkLength != nil {
		cfg.MaxChunkSize = *pf.Chunking.MaxChunkLength
	}
	if pf.Chunking.OverlapLength != nil {
		cfg.ChunkOverlap = *pf.Chunking.OverlapLength
	}
	if pf.Retrieval.TopK != nil {
		cfg.RetrievalTopK = *pf.Retrieval.TopK
	}
	if pf.Prompt.Template != "" {
		cfg.PromptTemplate = pf.Prompt.Template
	}
}
