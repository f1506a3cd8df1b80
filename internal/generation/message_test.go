package generation

import (
	"errors"
	"testing"

	"textgend/internal/assets"
	"textgend/internal/manager"
	"textgend/pkg/types"
)

func TestToMessage(t *testing.T) {
	p := ToMessage(Progress{RunID: "r", Token: " a", Output: "x a", Prompt: "p", Index: 2, ElapsedMs: 20, TokensPerSec: 100})
	if p.Status != types.StatusGenerating || p.Message != "Generating token" || p.Sentence != "x a" || p.TokensSec != 100 || p.TotalTime != 20 || p.Index != 2 {
		t.Fatalf("unexpected %+v", p)
	}
	if m := ToMessage(Complete{RunID: "r", Output: "po"}); m.Status != types.StatusComplete || m.Output != "po" {
		t.Fatalf("unexpected %+v", m)
	}
	if m := ToMessage(Aborted{Output: "p"}); m.Status != types.StatusAborted || m.Message != "Aborted" {
		t.Fatalf("unexpected %+v", m)
	}
	if m := ToMessage(Loading{Message: "Loading Model"}); m.Status != types.StatusLoading || m.Message != "Loading Model" {
		t.Fatalf("unexpected %+v", m)
	}
	m := ToMessage(Errored{Err: &assets.FetchError{URL: "u", Status: 500}})
	if m.Status != types.StatusError || m.Error == "" || m.ErrorKind != KindFetch {
		t.Fatalf("unexpected %+v", m)
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		KindBusy:       ErrBusy,
		KindModelLoad:  &manager.ModelLoadError{ModelID: "m", Err: errors.New("x")},
		KindGeneration: &GenerationError{Op: "decode", Err: errors.New("x")},
		KindNotFound:   manager.ErrModelNotFound("m"),
		KindUnknown:    errors.New("x"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %s want %s", err, got, want)
		}
	}
}

func TestFromAPI(t *testing.T) {
	r := FromAPI(types.GenerateRequest{ModelID: "m", Prompt: "p", Temp: 0.5, TopP: 0.9, RepeatPenalty: 1.1, Seed: 7, MaxSeqLen: 9, WeightsURL: types.URLList{"http://h/a", "http://h/b"}})
	if r.ModelID != "m" || r.MaxTokens != 9 || len(r.WeightsURLs) != 2 || r.Sampling().Seed != 7 {
		t.Fatalf("unexpected %+v", r)
	}
}
