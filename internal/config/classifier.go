package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

//go:embed patterns.yaml
var defaultPatterns []byte

// LoadClassifierConfig reads the classifier pattern set from path, or the
// built-in set when path is empty.
func LoadClassifierConfig(path string) (domain.ClassifierConfig, error) {
	data := defaultPatterns
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return domain.ClassifierConfig{}, fmt.Errorf("read pattern file: %w", err)
		}
	}
	return parseClassifierConfig(data)
}

func parseClassifierConfig(data []byte) (domain.ClassifierConfig, error) {
	var cfg domain.ClassifierConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.ClassifierConfig{}, &InvalidFieldError{Field: "PAPER_PATTERNS_FILE", Err: err}
	}
	return cfg, nil
}

// NewClassifier loads the pattern set and compiles it.
func NewClassifier(path string) (*domain.PaperClassifier, error) {
	cfg, err := LoadClassifierConfig(path)
	if err != nil {
		return nil, err
	}
	classifier, err := domain.NewPaperClassifier(cfg)
	if err != nil {
		return nil, &InvalidFieldError{Field: "PAPER_PATTERNS_FILE", Value: path, Err: err}
	}
	return classifier, nil
}
