package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"textgend/internal/controller"
	"textgend/internal/generation"
	"textgend/internal/worker"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		opts    controller.Options
		weights string
		retries int
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate text locally and stream it to stdout",
		Long: "Generate loads the model in-process and streams tokens as they are produced.\n" +
			"Ctrl+C aborts the run and prints the partial output. Without a prompt the\n" +
			"last prompt stored in the key-value store is reused.",
		Example: "  textgend generate --model phi_1_5_q4k --max-tokens 64 \"Write a haiku\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Prompt = strings.Join(args, " ")
			}
			if opts.ModelID == "" {
				opts.ModelID = a.cfg.DefaultModel
			}
			opts.WeightsURLs = splitCSV(weights)
			return a.generate(cmd.Context(), cmd, opts, retries, noStore)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.ModelID, "model", "m", "", "Catalog model id")
	f.Float64Var(&opts.Temperature, "temp", 0, "Sampling temperature (0=greedy)")
	f.Float64Var(&opts.TopP, "top-p", 1, "Nucleus sampling probability (1=off)")
	f.Float64Var(&opts.RepeatPenalty, "repeat-penalty", 1.1, "Penalty over the last 64 tokens (1=off)")
	f.Uint64Var(&opts.Seed, "seed", 299792458, "Random seed")
	f.IntVarP(&opts.MaxTokens, "max-tokens", "n", 200, "Tokens to generate")
	f.StringVar(&weights, "weights", "", "Comma separated weights URLs; overrides the catalog")
	f.StringVar(&opts.TokenizerURL, "tokenizer", "", "Tokenizer URL; overrides the catalog")
	f.StringVar(&opts.ConfigURL, "model-config", "", "Model config URL; overrides the catalog")
	f.IntVar(&retries, "retries", 2, "Restarts after asset download failures")
	f.BoolVar(&noStore, "no-storage", false, "Neither restore nor remember the prompt")
	return cmd
}

func (a *app) generate(parent context.Context, cmd *cobra.Command, opts controller.Options, retries int, noStore bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT)
	defer stop()

	cat, err := a.openCatalog()
	if err != nil {
		return err
	}
	if opts.ModelID == "" {
		return fmt.Errorf("no model given; choose one of: %s", strings.Join(cat.IDs(), ", "))
	}
	mgr, err := a.newManager()
	if err != nil {
		return err
	}
	defer mgr.Close()
	runner := generation.NewRunner(generation.RunnerConfig{Loader: mgr, Resolver: cat, Logger: a.log})
	w := worker.New(runner, worker.Options{Logger: a.log})
	defer w.Close()

	ccfg := controller.Config{
		Client:  w,
		Out:     cmd.OutOrStdout(),
		Logger:  a.log,
		Retries: retries,
	}
	if !noStore {
		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		ccfg.Store = store
	}
	res, err := controller.New(ccfg).Run(ctx, opts)
	if err != nil {
		if generation.ErrorKind(err) == generation.KindNotFound {
			return fmt.Errorf("%w; known models: %s", err, strings.Join(cat.IDs(), ", "))
		}
		return err
	}
	if res.Status == "aborted" {
		return errors.New("aborted")
	}
	return nil
}
