package memocache

// Fields carries structured context for one log line. Lines about a single
// cache always carry "name".
type Fields map[string]any

// With sets k and returns f for chaining.
func (f Fields) With(k string, v any) Fields {
	f[k] = v
	return f
}

func cacheFields(name string) Fields { return Fields{"name": name} }

// Logger receives the registry's operational log: hydrations, flushes,
// resets and property writes at Debug, reported misses at Info and perf
// misuse at Warn. Adapters for zap, logrus and slog live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything; used when Options.Logger is nil.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
