package audio

// Sink is the opaque audio output receiving mixed PCM frames at a
// fixed sample rate. Backed by oto in production (see sink_oto.go)
// and a discard sink under the headless build tag (see
// sink_headless.go).
type Sink interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
}
