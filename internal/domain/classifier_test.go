package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
)

func TestPaperClassifier_Match(t *testing.T) {
	c := defaultClassifier(t)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"arxiv abstract", "new results https://arxiv.org/abs/2401.01234", true},
		{"arxiv pdf", "arxiv.org/pdf/2312.12345v2", true},
		{"doi link", "out now: https://doi.org/10.1038/s41586-024-07000-0", true},
		{"pdf on a journal host", "https://www.nature.com/articles/s41586.pdf", true},
		{"pdf on excluded domain", "fill in https://www.irs.gov/pub/irs-pdf/fw4.pdf", false},
		{"pdf on excluded apex", "see https://sec.gov/files/form10-k.pdf", false},
		{"three weak signals", "our preprint is out, the abstract and dataset are linked", true},
		{"two weak signals", "read the abstract of our preprint", false},
		{"plain chatter", "coffee then a walk", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(tt.text))
		})
	}
}

func TestPaperClassifier_ExcludedPDFWithOtherSignal(t *testing.T) {
	c := defaultClassifier(t)

	assert.True(t, c.Match("https://irs.gov/x.pdf and arxiv.org/abs/2401.01234"))
}

func TestNewPaperClassifier_Validation(t *testing.T) {
	_, err := domain.NewPaperClassifier(domain.ClassifierConfig{ContentThreshold: 1})
	assert.Error(t, err)

	_, err = domain.NewPaperClassifier(domain.ClassifierConfig{LinkPatterns: []string{"x"}})
	assert.Error(t, err)

	_, err = domain.NewPaperClassifier(domain.ClassifierConfig{LinkPatterns: []string{"("}, ContentThreshold: 1})
	assert.Error(t, err)

	c, err := domain.NewPaperClassifier(domain.ClassifierConfig{
		LinkPatterns:     []string{`example\.org/paper`},
		ContentThreshold: 2,
		ContentPatterns:  []string{`\balpha\b`, `\bbeta\b`},
	})
	require.NoError(t, err)
	assert.True(t, c.Match("EXAMPLE.ORG/PAPER"))
	assert.True(t, c.Match("alpha beta"))
	assert.False(t, c.Match("alpha alpha"))
}
