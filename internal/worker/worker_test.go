package worker

import "testing"

func TestStateString(t *testing.T) {
	cases := map[State]string{
		AwaitingGreeting: "AwaitingGreeting",
		AwaitingWork:     "AwaitingWork",
		Gating:           "Gating",
		Executing:        "Executing",
		Reporting:        "Reporting",
		Terminated:       "Terminated",
		State(99):        "Unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}
