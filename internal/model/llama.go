//go:build llama

package model

/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with llama.cpp support.
const llamaBuilt = true

// Llama runs GGUF weights through llama.cpp.
type Llama struct {
	ContextSize int
	Threads     int
}

func (Llama) Name() string { return "llama" }

func (b Llama) Load(a Assets) (Model, error) {
	if len(a.Weights) == 0 {
		return nil, errors.New("llama: empty weights")
	}
	cfg, err := ParseConfig(a.Config)
	if err != nil {
		return nil, err
	}
	// llama.cpp loads from a path only.
	f, err := os.CreateTemp("", "textgend-*.gguf")
	if err != nil {
		return nil, fmt.Errorf("llama: spill weights: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(a.Weights); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("llama: spill weights: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("llama: spill weights: %w", err)
	}
	ctxSize := b.ContextSize
	if ctxSize <= 0 {
		ctxSize = cfg.SeqLen
	}
	if ctxSize <= 0 {
		ctxSize = 2048
	}
	m, err := llama.New(path, llama.SetContext(ctxSize))
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("llama: %w", err)
	}
	threads := b.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &llamaModel{m: m, path: path, threads: threads, ctxSize: ctxSize}, nil
}

// llamaModel adapts the push-style Predict callback to pull-style NextToken.
type llamaModel struct {
	m       *llama.LLama
	path    string
	threads int
	ctxSize int
	toks    chan string
	stop    chan struct{}
	done    chan error
}

func (l *llamaModel) Prime(prompt string, p SamplingParams) (string, error) {
	l.halt()
	l.toks = make(chan string)
	l.stop = make(chan struct{})
	l.done = make(chan error, 1)
	toks, stop, done := l.toks, l.stop, l.done

	l.m.SetTokenCallback(func(tok string) bool {
		select {
		case toks <- tok:
			return true
		case <-stop:
			return false
		}
	})
	opts := []llama.PredictOption{
		llama.SetTokens(l.ctxSize),
		llama.IgnoreEOS,
		llama.SetThreads(l.threads),
		llama.SetSeed(int(p.Seed & 0x7fffffff)),
		llama.SetPenalty(float32(p.RepeatPenalty)),
		llama.SetRepeat(RepeatLastN),
	}
	if p.Temperature > 0 {
		opts = append(opts, llama.SetTemperature(float32(p.Temperature)))
	} else {
		opts = append(opts, llama.SetTemperature(0), llama.SetTopK(1))
	}
	if p.TopP > 0 && p.TopP < 1 {
		opts = append(opts, llama.SetTopP(float32(p.TopP)))
	} else {
		opts = append(opts, llama.SetTopP(1))
	}
	go func() {
		_, err := l.m.Predict(prompt, opts...)
		close(toks)
		done <- err
	}()
	return l.NextToken()
}

func (l *llamaModel) NextToken() (string, error) {
	if l.toks == nil {
		return "", ErrNotPrimed
	}
	tok, ok := <-l.toks
	if ok {
		return tok, nil
	}
	if err := <-l.done; err != nil {
		l.done <- err
		return "", fmt.Errorf("llama: %w", err)
	}
	l.done <- nil
	return "", errors.New("llama: token stream ended")
}

// halt stops a running Predict and waits for it to return.
func (l *llamaModel) halt() {
	if l.stop == nil {
		return
	}
	close(l.stop)
	for range l.toks {
	}
	l.stop = nil
	l.toks = nil
}

func (l *llamaModel) Close() error {
	l.halt()
	if l.m != nil {
		l.m.Free()
		l.m = nil
	}
	return os.Remove(l.path)
}

func init() { Register(Llama{}) }
