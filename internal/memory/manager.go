package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/askd/internal/mode"
	"github.com/fyrsmithlabs/askd/internal/vectorstore"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Metadata keys written to the semantic history index.
const (
	MetaRole      = "role"
	MetaTimestamp = "timestamp"
	MetaSessionID = "session_id"
)

// Config configures a Manager.
type Config struct {
	Mode  mode.MemoryMode
	Limit int
	// Store holds durable session records. Required.
	Store SessionStore
	// Index receives a searchable copy of each persisted message. Optional.
	Index  vectorstore.Store
	Logger *zap.Logger
}

// Manager owns the transient buffer and the persistent session layer.
type Manager struct {
	mu     sync.Mutex
	mode   mode.MemoryMode
	buffer *Buffer
	store  SessionStore
	index  vectorstore.Store
	logger *zap.Logger

	now func() time.Time
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("memory: session store is required")
	}
	if cfg.Limit <= 0 {
		return nil, fmt.Errorf("memory: message limit must be positive, got %d", cfg.Limit)
	}
	m := cfg.Mode
	if m == "" {
		m = mode.Transient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		mode:   m,
		buffer: NewBuffer(cfg.Limit),
		store:  cfg.Store,
		index:  cfg.Index,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Mode returns the active memory mode.
func (m *Manager) Mode() mode.MemoryMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetMode switches memory mode. The transient buffer is kept as is and no
// session is created.
func (m *Manager) SetMode(md mode.MemoryMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = md
}

// SetIndex replaces the semantic history index, for example after the
// embedding provider changed. nil disables indexing.
func (m *Manager) SetIndex(index vectorstore.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = index
}

// AddUserMessage appends a user message. See add.
func (m *Manager) AddUserMessage(ctx context.Context, text, sessionID string) error {
	return m.add(ctx, RoleUser, text, sessionID)
}

// AddAIMessage appends an assistant message. See add.
func (m *Manager) AddAIMessage(ctx context.Context, text, sessionID string) error {
	return m.add(ctx, RoleAssistant, text, sessionID)
}

// add always appends to the buffer. In persistent mode with a session id it
// also appends to the durable record, whose failure is returned, and to the
// semantic index, whose failure is only logged.
func (m *Manager) add(ctx context.Context, role Role, text, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := Message{Role: role, Content: text, Timestamp: m.now().UTC()}
	m.buffer.Append(msg)

	if m.mode != mode.Persistent || sessionID == "" {
		return nil
	}
	if _, err := m.store.Append(ctx, sessionID, msg); err != nil {
		return fmt.Errorf("persisting %s message: %w", role, err)
	}
	m.indexMessage(ctx, sessionID, msg)
	return nil
}

func (m *Manager) indexMessage(ctx context.Context, sessionID string, msg Message) {
	if m.index == nil || msg.Content == "" {
		return
	}
	_, err := m.index.AddDocuments(ctx, []vectorstore.Document{{
		Content: msg.Content,
		Metadata: map[string]string{
			MetaRole:      string(msg.Role),
			MetaTimestamp: msg.Timestamp.Format(time.RFC3339Nano),
			MetaSessionID: sessionID,
		},
	}})
	if err != nil {
		m.logger.Warn("indexing message failed",
			zap.String("session.id", sessionID),
			zap.String("role", string(msg.Role)),
			zap.Error(err),
		)
	}
}

// ChatHistory returns the transient buffer, oldest first. It is the working
// context in both memory modes.
func (m *Manager) ChatHistory() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Messages()
}

// BufferLen returns the number of buffered messages.
func (m *Manager) BufferLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Len()
}

// ClearBuffer empties the transient buffer.
func (m *Manager) ClearBuffer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer.Clear()
}

// CreateSession returns a fresh time-ordered session id. Nothing is written
// until the first message is appended under it.
func (m *Manager) CreateSession() string {
	id := uuid.Must(uuid.NewV7()).String()
	m.logger.Info("session created", zap.String("session.id", id))
	return id
}

// LoadSession replaces the buffer with the session's most recent messages.
// It fails in transient mode or when the session does not exist, leaving the
// buffer untouched.
func (m *Manager) LoadSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mode != mode.Persistent {
		return ErrTransientMode
	}
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return err
	}
	m.buffer.Replace(sess.Messages)
	m.logger.Info("session loaded",
		zap.String("session.id", id),
		zap.Int("messages", len(sess.Messages)),
		zap.Int("buffered", m.buffer.Len()),
	)
	return nil
}

// AllSessions lists session summaries, most recently updated first.
func (m *Manager) AllSessions(ctx context.Context) ([]Summary, error) {
	return m.store.List(ctx)
}

// DeleteSession removes the session record and its indexed messages. It
// reports false when no record existed.
func (m *Manager) DeleteSession(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existed, err := m.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if m.index != nil {
		if err := m.index.DeleteWhere(ctx, map[string]string{MetaSessionID: id}); err != nil {
			m.logger.Warn("removing indexed messages failed", zap.String("session.id", id), zap.Error(err))
		}
	}
	m.logger.Info("session deleted", zap.String("session.id", id), zap.Bool("existed", existed))
	return existed, nil
}

// ClearAllSessions removes every session record and resets the index.
func (m *Manager) ClearAllSessions(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.store.Clear(ctx)
	if err != nil {
		return err
	}
	if m.index != nil {
		if err := m.index.Reset(ctx); err != nil {
			m.logger.Warn("resetting history index failed", zap.Error(err))
		}
	}
	m.logger.Info("all sessions cleared", zap.Int("removed", n))
	return nil
}

// HistoryHit is a persisted message recalled by semantic search.
type HistoryHit struct {
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Score     float32   `json:"score"`
}

// SearchHistory finds persisted messages semantically similar to query.
func (m *Manager) SearchHistory(ctx context.Context, query string, k int) ([]HistoryHit, error) {
	m.mu.Lock()
	index := m.index
	m.mu.Unlock()

	if index == nil {
		return nil, ErrNoIndex
	}
	results, err := index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}

	hits := make([]HistoryHit, 0, len(results))
	for _, r := range results {
		ts, _ := time.Parse(time.RFC3339Nano, r.Metadata[MetaTimestamp])
		hits = append(hits, HistoryHit{
			SessionID: r.Metadata[MetaSessionID],
			Role:      Role(r.Metadata[MetaRole]),
			Content:   r.Content,
			Timestamp: ts,
			Score:     r.Score,
		})
	}
	return hits, nil
}
