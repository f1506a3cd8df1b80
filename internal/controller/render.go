package controller

import (
	"fmt"
	"io"

	"textgend/internal/generation"
)

// renderer writes a human readable transcript of one run.
type renderer struct {
	w       io.Writer
	started bool
	tokens  int
	tps     float64
}

func (r *renderer) render(ev generation.Event) {
	switch e := ev.(type) {
	case generation.Loading:
		fmt.Fprintf(r.w, "[loading] %s\n", e.Message)
	case generation.Progress:
		if !r.started {
			r.started = true
			fmt.Fprint(r.w, e.Prompt)
		}
		fmt.Fprint(r.w, e.Token)
		r.tokens, r.tps = e.Index, e.TokensPerSec
	case generation.Complete:
		r.footer("complete")
	case generation.Aborted:
		r.footer("aborted")
	case generation.Errored:
		if r.started {
			fmt.Fprintln(r.w)
		}
		fmt.Fprintf(r.w, "[error] %s: %v\n", generation.ErrorKind(e.Err), e.Err)
	}
}

func (r *renderer) footer(status string) {
	if r.started {
		fmt.Fprintln(r.w)
	}
	fmt.Fprintf(r.w, "[%s] %d tokens, %.2f tokens/s\n", status, r.tokens, r.tps)
}
