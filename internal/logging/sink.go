package logging

import "log/slog"

// #region sink
// Sink receives the parameters and metrics of one training run.
type Sink interface {
	LogParam(key, value string) error
	LogScalar(key string, v float64) error
	LogSequence(key string, vs []float64) error
}

// #endregion sink

// #region slog-sink
// SlogExperiment writes every parameter and metric as a log line.
type SlogExperiment struct {
	Logger *slog.Logger
	RunID  string
}

func (s SlogExperiment) logger() *slog.Logger {
	l := s.Logger
	if l == nil {
		l = slog.Default()
	}
	if s.RunID != "" {
		l = l.With("run_id", s.RunID)
	}
	return l
}

func (s SlogExperiment) LogParam(key, value string) error {
	s.logger().Info("param", "key", key, "value", value)
	return nil
}

func (s SlogExperiment) LogScalar(key string, v float64) error {
	s.logger().Info("metric", "key", key, "value", v)
	return nil
}

func (s SlogExperiment) LogSequence(key string, vs []float64) error {
	s.logger().Info("metric", "key", key, "values", vs)
	return nil
}

// #endregion slog-sink

// #region multi
// Multi fans every call out to all sinks. Every sink is tried; the first
// error is returned.
type Multi []Sink

func (m Multi) each(fn func(Sink) error) error {
	var first error
	for _, s := range m {
		if err := fn(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) LogParam(key, value string) error {
	return m.each(func(s Sink) error { return s.LogParam(key, value) })
}

func (m Multi) LogScalar(key string, v float64) error {
	return m.each(func(s Sink) error { return s.LogScalar(key, v) })
}

func (m Multi) LogSequence(key string, vs []float64) error {
	return m.each(func(s Sink) error { return s.LogSequence(key, vs) })
}

// #endregion multi

// Discard drops everything.
type Discard struct{}

func (Discard) LogParam(string, string) error       { return nil }
func (Discard) LogScalar(string, float64) error     { return nil }
func (Discard) LogSequence(string, []float64) error { return nil }
