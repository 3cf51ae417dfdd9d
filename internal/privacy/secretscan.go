package privacy

import (
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// GitleaksScanner reports credentials matched by the gitleaks default rule set.
type GitleaksScanner struct {
	mu       sync.Mutex
	detector *detect.Detector
}

// NewGitleaksScanner builds a scanner from the embedded gitleaks config.
func NewGitleaksScanner() (*GitleaksScanner, error) {
	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	return &GitleaksScanner{detector: d}, nil
}

// Secrets returns the distinct secret values found in text. The detector
// keeps per-scan state, so calls are serialised.
func (s *GitleaksScanner) Secrets(text string) []string {
	s.mu.Lock()
	findings := s.detector.DetectString(text)
	s.mu.Unlock()

	seen := make(map[string]bool, len(findings))
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		if f.Secret == "" || seen[f.Secret] {
			continue
		}
		seen[f.Secret] = true
		out = append(out, f.Secret)
	}
	return out
}
