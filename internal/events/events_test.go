package events

import "testing"

func TestCueStartedFansOutToAllSubscribers(t *testing.T) {
	d := New()
	var got []string
	d.OnCueStarted(func(idx int, name string) { got = append(got, name+"-a") })
	d.OnCueStarted(func(idx int, name string) { got = append(got, name+"-b") })

	d.EmitCueStarted(0, "intro")
	if len(got) != 2 || got[0] != "intro-a" || got[1] != "intro-b" {
		t.Fatalf("got %v, want both subscribers invoked in registration order", got)
	}
}

func TestEmitWithNoSubscribersIsANoop(t *testing.T) {
	d := New()
	d.EmitError(ErrorGpuUploadFailed, "detail") // must not panic
}

func TestErrorKindStrings(t *testing.T) {
	cases := map[ErrorKind]string{
		ErrorSessionInvalid:       "session_invalid",
		ErrorPlaybackLoadFailed:   "playback_load_failed",
		ErrorMediaDecodeFailed:    "media_decode_failed",
		ErrorAudioPrefetchTimeout: "audio_prefetch_timeout",
		ErrorGpuUploadFailed:      "gpu_upload_failed",
		ErrorTransitionStuck:      "transition_stuck",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", kind, got, want)
		}
	}
}

func TestTransitionPendingReasonPassedThrough(t *testing.T) {
	d := New()
	var reason string
	d.OnTransitionPending(func(r string) { reason = r })
	d.EmitTransitionPending("duration_reached")
	if reason != "duration_reached" {
		t.Fatalf("reason = %q, want %q", reason, "duration_reached")
	}
}
