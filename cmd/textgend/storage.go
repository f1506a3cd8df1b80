package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStorageCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the key-value store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("storage requires a subcommand: ls|get|set|rm|clear")
		},
	}
	ls := &cobra.Command{Use: "ls", Short: "List live keys and values", Args: cobra.NoArgs, RunE: func(cmd *cobra.Command, args []string) error {
		s, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		items, err := s.All(cmd.Context())
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%q\n", it.Key, it.Value)
		}
		return nil
	}}
	get := &cobra.Command{Use: "get <key>", Short: "Print a value", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		s, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		v, ok, err := s.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("key %q not found", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	}}
	var ttl int
	set := &cobra.Command{Use: "set <key> <value>", Short: "Store a value", Args: cobra.ExactArgs(2), RunE: func(cmd *cobra.Command, args []string) error {
		if ttl < 0 {
			return fmt.Errorf("--ttl must not be negative")
		}
		s, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Set(cmd.Context(), args[0], args[1], ttl)
	}}
	set.Flags().IntVar(&ttl, "ttl", 0, "Expiry in seconds (0=never)")
	rm := &cobra.Command{Use: "rm <key>", Short: "Remove a value", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		s, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Remove(cmd.Context(), args[0])
	}}
	clearCmd := &cobra.Command{Use: "clear", Short: "Remove every entry of the backend", Args: cobra.NoArgs, RunE: func(cmd *cobra.Command, args []string) error {
		s, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		return s.Clear(cmd.Context())
	}}
	cmd.AddCommand(ls, get, set, rm, clearCmd)
	return cmd
}
