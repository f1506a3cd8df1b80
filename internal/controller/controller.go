// Package controller is the client side of the worker boundary: it turns
// user options into Start commands, renders the event stream for a terminal
// and remembers the last prompt in the key-value store.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"textgend/internal/generation"
	"textgend/internal/storage"
	"textgend/internal/worker"
)

// PromptKey is the storage key holding the last prompt.
const PromptKey = "prompt"

// DefaultPromptTTL bounds how long a remembered prompt survives.
const DefaultPromptTTL = 7 * 24 * time.Hour

// Client is the worker side of the boundary.
type Client interface {
	Send(worker.Command) error
	Events() <-chan generation.Event
}

// Options are the form inputs of one generation.
type Options struct {
	ModelID       string
	Prompt        string
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	Seed          uint64
	MaxTokens     int
	WeightsURLs   []string
	TokenizerURL  string
	ConfigURL     string
	Backend       string
}

// Request converts the options into a generation request.
func (o Options) Request() generation.Request {
	return generation.Request{
		ModelID:       o.ModelID,
		Prompt:        o.Prompt,
		Temperature:   o.Temperature,
		TopP:          o.TopP,
		RepeatPenalty: o.RepeatPenalty,
		Seed:          o.Seed,
		MaxTokens:     o.MaxTokens,
		WeightsURLs:   o.WeightsURLs,
		TokenizerURL:  o.TokenizerURL,
		ConfigURL:     o.ConfigURL,
		Backend:       o.Backend,
	}
}

// Config configures a Controller.
type Config struct {
	Client Client
	// Store remembers the prompt; nil disables persistence.
	Store     *storage.Store
	PromptTTL time.Duration
	// Out receives the rendered stream; io.Discard when nil.
	Out    io.Writer
	Logger zerolog.Logger
	// Retries re-issues start after a fetch failure, with exponential backoff.
	Retries int
	// Backoff overrides the retry schedule.
	Backoff func() backoff.BackOff
}

// Result summarizes a finished run.
type Result struct {
	RunID        string
	Status       string // complete, aborted or error
	Output       string
	Tokens       int
	TokensPerSec float64
}

type Controller struct {
	client    Client
	store     *storage.Store
	promptTTL time.Duration
	out       io.Writer
	log       zerolog.Logger
	retries   int
	backoff   func() backoff.BackOff
}

func New(cfg Config) *Controller {
	c := &Controller{
		client:    cfg.Client,
		store:     cfg.Store,
		promptTTL: cfg.PromptTTL,
		out:       cfg.Out,
		log:       cfg.Logger,
		retries:   cfg.Retries,
		backoff:   cfg.Backoff,
	}
	if c.promptTTL <= 0 {
		c.promptTTL = DefaultPromptTTL
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.backoff == nil {
		c.backoff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			return b
		}
	}
	return c
}

// Run starts a generation and renders it until a terminal event. Cancelling
// ctx sends Abort and waits for the aborted event. An empty prompt is
// replaced by the remembered one.
func (c *Controller) Run(ctx context.Context, opts Options) (Result, error) {
	if err := c.preparePrompt(ctx, &opts); err != nil {
		return Result{}, err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), uint64(max(c.retries, 0))), ctx)
	for attempt := 1; ; attempt++ {
		res, err := c.runOnce(ctx, opts)
		if err == nil || generation.ErrorKind(err) != generation.KindFetch {
			return res, err
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return res, err
		}
		fmt.Fprintf(c.out, "[retry] attempt %d in %s\n", attempt+1, wait.Round(time.Millisecond))
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("retrying after fetch failure")
		select {
		case <-ctx.Done():
			return res, err
		case <-time.After(wait):
		}
	}
}

func (c *Controller) preparePrompt(ctx context.Context, opts *Options) error {
	if c.store == nil {
		return nil
	}
	if opts.Prompt == "" {
		v, ok, err := c.store.Get(ctx, PromptKey)
		if err != nil {
			return fmt.Errorf("restore prompt: %w", err)
		}
		if ok {
			opts.Prompt = v
			c.log.Debug().Msg("restored prompt from storage")
		}
		return nil
	}
	if err := c.store.Set(ctx, PromptKey, opts.Prompt, int(c.promptTTL/time.Second)); err != nil {
		return fmt.Errorf("persist prompt: %w", err)
	}
	return nil
}

func (c *Controller) runOnce(ctx context.Context, opts Options) (Result, error) {
	id := uuid.NewString()
	res := Result{RunID: id}
	if err := c.client.Send(worker.Start{RunID: id, Request: opts.Request()}); err != nil {
		return res, err
	}
	r := renderer{w: c.out}
	done := ctx.Done()
	for {
		select {
		case <-done:
			// stop listening on ctx; the run answers with Aborted
			done = nil
			if err := c.client.Send(worker.Abort{}); err != nil {
				return res, err
			}
		case ev, ok := <-c.client.Events():
			if !ok {
				return res, worker.ErrClosed
			}
			if generation.RunIDOf(ev) != id {
				continue
			}
			r.render(ev)
			switch e := ev.(type) {
			case generation.Progress:
				res.Tokens = e.Index
				res.TokensPerSec = e.TokensPerSec
			case generation.Complete:
				res.Status, res.Output = "complete", e.Output
				return res, nil
			case generation.Aborted:
				res.Status, res.Output = "aborted", e.Output
				return res, nil
			case generation.Errored:
				res.Status = "error"
				if e.Err == nil {
					return res, errors.New("generation failed")
				}
				return res, e.Err
			}
		}
	}
}
