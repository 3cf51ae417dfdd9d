package backends

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/askd/internal/faults"
	"github.com/patrickmn/go-cache"
)

// Prober checks that a self-hosted backend answers before it is selected.
type Prober interface {
	Probe(ctx context.Context, baseURL string) error
}

// OllamaProber issues GET {base}/api/tags and caches the outcome per base URL
// so repeated mode switches do not hammer a dead daemon.
type OllamaProber struct {
	client  *http.Client
	timeout time.Duration
	results *cache.Cache
}

type probeResult struct{ err error }

// NewOllamaProber returns a prober whose results live for ttl.
func NewOllamaProber(client *http.Client, timeout, ttl time.Duration) *OllamaProber {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OllamaProber{
		client:  client,
		timeout: timeout,
		results: cache.New(ttl, 2*ttl),
	}
}

// Probe reports whether the Ollama daemon at baseURL is reachable.
func (p *OllamaProber) Probe(ctx context.Context, baseURL string) error {
	base := strings.TrimRight(baseURL, "/")
	if cached, ok := p.results.Get(base); ok {
		return cached.(probeResult).err
	}

	err := p.probe(ctx, base)
	if ctx.Err() == nil {
		p.results.SetDefault(base, probeResult{err: err})
	}
	return err
}

func (p *OllamaProber) probe(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/tags", nil)
	if err != nil {
		return faults.Configuration("invalid ollama base URL %q: %v", base, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return faults.BackendUnavailable("ollama at %s: %v", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return faults.BackendUnavailable("ollama at %s answered %d", base, resp.StatusCode)
	}
	return nil
}
