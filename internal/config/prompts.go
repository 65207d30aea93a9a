package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/kgrag-mcq/internal/failure"
)

// System prompt keys.
const (
	PromptMCQ              = "MCQ_QUESTION"
	PromptEntityExtraction = "DISEASE_ENTITY_EXTRACTION"
)

// #region defaults
var defaultSystemPrompts = map[string]string{
	PromptMCQ: `You are an expert biomedical researcher. For answering the Question at the end, you need to first read the Context provided.
Based on that Context, provide your answer in the following JSON format for the Question asked.
{
  "answer": <correct answer>
}`,
	PromptEntityExtraction: `You are an expert disease entity extractor from a sentence and report it as JSON in the following format:
{"Diseases": <List of extracted entities>}
Please report only Diseases. Do not report any other entities like Genes, Proteins, Enzymes etc.`,
}

// #endregion defaults

// #region load
// LoadSystemPrompts reads a YAML map of prompt name to text. Keys missing
// from the file, or the whole file when path is empty or absent, fall back
// to the built-in prompts.
func LoadSystemPrompts(path string) (map[string]string, error) {
	prompts := make(map[string]string, len(defaultSystemPrompts))
	for k, v := range defaultSystemPrompts {
		prompts[k] = v
	}
	if path == "" {
		return prompts, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return prompts, nil
	}
	if err != nil {
		return nil, failure.Configf("system prompts", "read %s: %w", path, err)
	}
	var fromFile map[string]string
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return nil, failure.Configf("system prompts", "parse %s: %w", path, err)
	}
	for k, v := range fromFile {
		if v != "" {
			prompts[k] = v
		}
	}
	return prompts, nil
}

// LoadPriorKnowledge resolves the optional prior knowledge block. A file path
// takes precedence over the literal; nil means none was supplied.
func LoadPriorKnowledge(literal *string, path string) (*string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, failure.Configf("prior knowledge", "read %s: %w", path, err)
		}
		text := string(data)
		return &text, nil
	}
	return literal, nil
}

// #endregion load
