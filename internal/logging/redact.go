package logging

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/privacy"
)

const redacted = "[REDACTED]"

// secretMarshaler wraps config.Secret for Zap object marshaling.
type secretMarshaler struct {
	key string
	val config.Secret
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *secretMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(s.key, fmt.Sprintf("[REDACTED:%d]", len(s.val.Value())))
	return nil
}

// Secret creates a Zap field for config.Secret with redaction indicator.
func Secret(key string, val config.Secret) zap.Field {
	return zap.Object(key, &secretMarshaler{key: key, val: val})
}

// TextLen logs the size of user-authored text instead of its content.
func TextLen(key, val string) zap.Field {
	return zap.Int(key+"_len", len(val))
}

// RedactingEncoder masks sensitive keys, credential patterns and, when
// privacy scrubbing is on, the same personal data categories the engine
// removes from queries. It is the last line of defence: callers already log
// lengths rather than user text.
type RedactingEncoder struct {
	zapcore.Encoder
	keys     map[string]bool
	patterns []*regexp.Regexp
	pii      *privacy.Filter
}

// NewRedactingEncoder wraps an encoder with redaction rules.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	e := &RedactingEncoder{Encoder: base, keys: make(map[string]bool, len(cfg.Fields))}
	for _, f := range cfg.Fields {
		e.keys[strings.ToLower(f)] = true
	}
	for _, p := range cfg.Patterns {
		if len(p) > 200 {
			return nil, fmt.Errorf("redaction pattern too long (max 200 chars): %q", p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		e.patterns = append(e.patterns, re)
	}
	if cfg.Privacy {
		// Credentials are covered by the patterns above; the api_key category
		// would also match trace and span ids.
		var cats []privacy.Category
		for _, c := range privacy.DefaultCategories() {
			if c.ID != privacy.CategoryAPIKey {
				cats = append(cats, c)
			}
		}
		f, err := privacy.New(&privacy.Config{Enabled: true, Categories: cats})
		if err != nil {
			return nil, fmt.Errorf("building privacy scrubber: %w", err)
		}
		e.pii = f
	}
	return e, nil
}

func (e *RedactingEncoder) maskedKey(key string) bool {
	return e.keys[strings.ToLower(key)]
}

// clean applies credential patterns, then personal data markers unless
// s is an identifier.
func (e *RedactingEncoder) clean(s string, identifier bool) string {
	for _, re := range e.patterns {
		s = re.ReplaceAllString(s, redacted)
	}
	if e.pii != nil && !identifier {
		s, _ = e.pii.Filter(s)
	}
	return s
}

// isIdentifier matches keys such as session.id and trace_id, whose values
// are generated and could resemble phone numbers.
func isIdentifier(key string) bool {
	return strings.HasSuffix(key, ".id") || strings.HasSuffix(key, "_id")
}

func (e *RedactingEncoder) AddString(key, val string) {
	if e.maskedKey(key) {
		val = redacted
	} else {
		val = e.clean(val, isIdentifier(key))
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.maskedKey(key) {
		val = []byte(redacted)
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.maskedKey(key) {
		val = []byte(redacted)
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected replaces the whole value of a masked key.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.maskedKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.maskedKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.maskedKey(key) {
		e.Encoder.AddString(key, redacted)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:  e.Encoder.Clone(),
		keys:     e.keys,
		patterns: e.patterns,
		pii:      e.pii,
	}
}

// EncodeEntry routes per-entry fields through the redacting methods and
// cleans the message itself.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	clone := e.Clone().(*RedactingEncoder)
	for _, f := range fields {
		f.AddTo(clone)
	}
	ent.Message = e.clean(ent.Message, false)
	return clone.Encoder.EncodeEntry(ent, nil)
}
