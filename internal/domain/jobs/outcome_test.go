package jobs

import (
	"testing"

	"gorm.io/datatypes"
)

func TestOutcomeOf(t *testing.T) {
	cases := []struct {
		job  *JobRun
		want string
	}{
		{&JobRun{Status: StatusQueued}, StatusQueued},
		{&JobRun{Status: StatusStarted, Stage: "embed", Progress: 40}, StatusStarted},
		{&JobRun{Status: StatusFinished, Result: datatypes.JSON(`{"stored":true}`)}, StatusFinished},
		{&JobRun{Status: StatusFailed, Error: "boom"}, StatusFailed},
		{&JobRun{Status: "weird"}, StatusQueued},
	}
	for _, tc := range cases {
		got := OutcomeOf(tc.job)
		if got.Status() != tc.want {
			t.Fatalf("status %q: want=%s got=%s", tc.job.Status, tc.want, got.Status())
		}
	}

	switch o := OutcomeOf(&JobRun{Status: StatusFailed, Stage: "resolve", Error: "no input"}).(type) {
	case Failed:
		if o.Error != "no input" || o.Stage != "resolve" {
			t.Fatalf("unexpected failed outcome: %+v", o)
		}
	default:
		t.Fatalf("expected Failed, got=%T", o)
	}

	fin, ok := OutcomeOf(&JobRun{Status: StatusFinished, Result: datatypes.JSON(`{"chunks":3}`)}).(Finished)
	if !ok || string(fin.Result) != `{"chunks":3}` {
		t.Fatalf("unexpected finished outcome: %+v", fin)
	}
	if OutcomeOf(nil) != nil {
		t.Fatalf("nil job should have nil outcome")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(StatusQueued) || IsTerminal(StatusStarted) {
		t.Fatalf("queued/started are not terminal")
	}
	if !IsTerminal(StatusFinished) || !IsTerminal(StatusFailed) {
		t.Fatalf("finished/failed are terminal")
	}
}
