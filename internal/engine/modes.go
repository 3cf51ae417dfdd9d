package engine

import (
	"context"

	"github.com/fyrsmithlabs/askd/internal/mode"
	"go.uber.org/zap"
)

// ChangeAnswerMode switches the answer strategy. Selecting web search
// builds a search client first; if none can be built the mode is left
// unchanged and the error is returned.
func (e *Engine) ChangeAnswerMode(ctx context.Context, value string) error {
	m, err := mode.ParseAnswerMode(value)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setAnswerMode(ctx, m)
}

// setAnswerMode requires e.mu or exclusive access during construction.
func (e *Engine) setAnswerMode(ctx context.Context, m mode.AnswerMode) error {
	cur := e.state.Load()
	next := *cur
	next.answerMode = m
	next.searcher = nil
	if m == mode.AnswerWebSearch {
		s, err := e.registry.Searcher(ctx)
		if err != nil {
			return err
		}
		next.searcher = s
	}
	e.state.Store(&next)
	e.logger.Info(ctx, "answer mode changed",
		zap.String("from", string(cur.answerMode)),
		zap.String("to", string(m)),
	)
	return nil
}

// ChangeModelProvider switches the language model. The registry may fall
// back once to the configured fallback provider; Status reports the
// provider actually in use.
func (e *Engine) ChangeModelProvider(ctx context.Context, value string) error {
	p, err := mode.ParseModelProvider(value)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	model, err := e.registry.Model(ctx, p)
	if err != nil {
		return err
	}
	next := *e.state.Load()
	next.model = model
	e.state.Store(&next)
	return nil
}

// ChangeEmbeddingProvider rebuilds the embedding stack: embedder, vector
// store, retrieval orchestrator and the memory manager's history index. The
// previous stack is released only after the new one is active.
func (e *Engine) ChangeEmbeddingProvider(ctx context.Context, value string) error {
	p, err := mode.ParseEmbeddingProvider(value)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.openCorpus(ctx, p)
	if err != nil {
		return err
	}
	cur := e.state.Load()
	next := *cur
	next.corpus = c
	e.state.Store(&next)
	e.memory.SetIndex(c.history)

	if err := cur.corpus.close(); err != nil {
		e.logger.Warn(ctx, "closing previous embedding stack", zap.Error(err))
	}
	e.logger.Info(ctx, "embedding provider changed",
		zap.String("from", string(cur.corpus.provider)),
		zap.String("to", string(c.provider)),
	)
	return nil
}

// ChangeMemoryMode switches between transient and persistent memory. The
// buffer is kept and no session is created; in persistent mode the next
// query opens one if none is active.
func (e *Engine) ChangeMemoryMode(ctx context.Context, value string) error {
	m, err := mode.ParseMemoryMode(value)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	from := e.memory.Mode()
	e.memory.SetMode(m)
	e.logger.Info(ctx, "memory mode changed",
		zap.String("from", string(from)),
		zap.String("to", string(m)),
	)
	return nil
}

// ToggleFilter enables or disables the privacy filter.
func (e *Engine) ToggleFilter(ctx context.Context, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter.SetEnabled(enabled)
	e.logger.Info(ctx, "privacy filter toggled", zap.Bool("enabled", enabled))
	return nil
}
