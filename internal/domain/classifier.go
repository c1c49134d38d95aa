package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ClassifierConfig is the tunable pattern set of the paper classifier.
type ClassifierConfig struct {
	// LinkPatterns are strong signals: any match makes the post a paper post.
	LinkPatterns []string `yaml:"link_patterns"`

	// ContentPatterns are weak signals counted towards ContentThreshold.
	ContentPatterns []string `yaml:"content_patterns"`

	// ContentThreshold is the number of distinct content patterns that must
	// match when no strong link is present.
	ContentThreshold int `yaml:"content_threshold"`

	// PDFExcludedDomains are hosts known to serve non-academic PDFs. A .pdf
	// link on one of these hosts (or a subdomain) is not a strong signal.
	PDFExcludedDomains []string `yaml:"pdf_excluded_domains"`
}

// PaperClassifier decides whether a post's search text links to an academic
// paper. It is safe for concurrent use.
type PaperClassifier struct {
	links     []*regexp.Regexp
	content   []*regexp.Regexp
	threshold int
	excluded  []string
}

// NewPaperClassifier compiles the configured patterns.
func NewPaperClassifier(cfg ClassifierConfig) (*PaperClassifier, error) {
	if len(cfg.LinkPatterns) == 0 {
		return nil, fmt.Errorf("classifier: at least one link pattern is required")
	}
	if cfg.ContentThreshold <= 0 {
		return nil, fmt.Errorf("classifier: content threshold must be positive, got %d", cfg.ContentThreshold)
	}

	links, err := compileAll(cfg.LinkPatterns)
	if err != nil {
		return nil, fmt.Errorf("classifier: link pattern: %w", err)
	}
	content, err := compileAll(cfg.ContentPatterns)
	if err != nil {
		return nil, fmt.Errorf("classifier: content pattern: %w", err)
	}

	excluded := make([]string, 0, len(cfg.PDFExcludedDomains))
	for _, d := range cfg.PDFExcludedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			excluded = append(excluded, d)
		}
	}

	return &PaperClassifier{
		links:     links,
		content:   content,
		threshold: cfg.ContentThreshold,
		excluded:  excluded,
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Match reports whether searchText links to a paper. Empty text never matches.
func (c *PaperClassifier) Match(searchText string) bool {
	if strings.TrimSpace(searchText) == "" {
		return false
	}
	return c.hasPaperLink(searchText) || c.contentMatches(searchText) >= c.threshold
}

func (c *PaperClassifier) hasPaperLink(text string) bool {
	for _, re := range c.links {
		for _, m := range re.FindAllString(text, -1) {
			if strings.Contains(m, ".pdf") && c.isExcludedPDF(m) {
				continue
			}
			return true
		}
	}
	return false
}

func (c *PaperClassifier) contentMatches(text string) int {
	n := 0
	for _, re := range c.content {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}

func (c *PaperClassifier) isExcludedPDF(link string) bool {
	host := link
	if u, err := url.Parse(link); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	for _, d := range c.excluded {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
