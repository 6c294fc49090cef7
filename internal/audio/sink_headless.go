//go:build headless

package audio

// NullSink discards output; used for headless builds and tests.
type NullSink struct {
	started bool
}

func NewOtoSink(sampleRate int, engine *Engine) (*NullSink, error) {
	return &NullSink{}, nil
}

func (s *NullSink) Start()         { s.started = true }
func (s *NullSink) Stop()          { s.started = false }
func (s *NullSink) Close()         { s.started = false }
func (s *NullSink) IsStarted() bool { return s.started }
