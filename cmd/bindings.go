package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cmdlink/cmdlink/internal/binding"
	"github.com/cmdlink/cmdlink/internal/config"
)

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Manage command-to-function bindings",
}

var (
	bindingsConfigPath string
	addFunction        string
	addDescription     string
	addArgDescription  string
	addGroup           string
	lsEnabledOnly      bool
	lsDisabledOnly     bool
)

func init() {
	bindingsCmd.PersistentFlags().StringVarP(&bindingsConfigPath, "config", "c", "", "Config file path (default ~/.cmdlink/config.json)")

	addCmd.Flags().StringVarP(&addFunction, "function", "f", "", "Function name exposed to the model (required)")
	addCmd.Flags().StringVarP(&addDescription, "description", "d", "", "Function description")
	addCmd.Flags().StringVar(&addArgDescription, "arg-description", "", "Argument description")
	addCmd.Flags().StringVarP(&addGroup, "group", "g", "", "Binding group")
	_ = addCmd.MarkFlagRequired("function")

	lsCmd.Flags().BoolVar(&lsEnabledOnly, "enabled", false, "Only enabled bindings")
	lsCmd.Flags().BoolVar(&lsDisabledOnly, "disabled", false, "Only disabled bindings")

	bindingsCmd.AddCommand(addCmd)
	bindingsCmd.AddCommand(lsCmd)
	bindingsCmd.AddCommand(rmCmd)
	bindingsCmd.AddCommand(enableCmd)
	bindingsCmd.AddCommand(disableCmd)
	bindingsCmd.AddCommand(exportCmd)
	bindingsCmd.AddCommand(importCmd)
}

func openStore() (*binding.Store, error) {
	provider, err := config.NewProvider(bindingsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return binding.NewStore(provider), nil
}

var addCmd = &cobra.Command{
	Use:   "add <command>",
	Short: "Declare a new binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		b := binding.Binding{
			CommandName:    args[0],
			FunctionName:   addFunction,
			Description:    addDescription,
			ArgDescription: addArgDescription,
			Group:          addGroup,
			Enabled:        true,
		}
		if err := store.Add(b); err != nil {
			return err
		}
		fmt.Printf("Bound %q -> %s\n", binding.NormalizeName(args[0]), addFunction)
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List bindings",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		filter := binding.FilterAll
		if lsEnabledOnly {
			filter = binding.FilterEnabled
		}
		if lsDisabledOnly {
			filter = binding.FilterDisabled
		}
		entries := store.List(filter)
		if len(entries) == 0 {
			fmt.Println("No bindings.")
			return nil
		}
		for _, e := range entries {
			state := "enabled"
			if !e.Enabled {
				state = "disabled"
			}
			fmt.Printf("%-24s -> %-24s [%s] %s\n", e.CommandName, e.FunctionName, state, e.Description)
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <command>",
	Short: "Remove a binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Remove(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %q\n", binding.NormalizeName(args[0]))
		return nil
	},
}

var enableCmd = &cobra.Command{
	Use:   "enable <command>",
	Short: "Enable a binding",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setEnabled(args[0], true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable <command>",
	Short: "Disable a binding",
	Args:  cobra.ExactArgs(1),
	RunE:  func(_ *cobra.Command, args []string) error { return setEnabled(args[0], false) },
}

func setEnabled(name string, enabled bool) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	changed, err := store.SetEnabled(name, enabled)
	if err != nil {
		return err
	}
	word := "enabled"
	if !enabled {
		word = "disabled"
	}
	if !changed {
		fmt.Printf("%q was already %s\n", binding.NormalizeName(name), word)
		return nil
	}
	fmt.Printf("%s %q\n", word, binding.NormalizeName(name))
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all bindings to stdout as YAML",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return yaml.NewEncoder(os.Stdout).Encode(store.List(binding.FilterAll))
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Add bindings from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var entries []binding.Binding
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}
		added := 0
		for _, e := range entries {
			if err := store.Add(e); err != nil {
				fmt.Fprintf(os.Stderr, "skipping %q: %v\n", e.CommandName, err)
				continue
			}
			added++
		}
		fmt.Printf("Imported %d of %d binding(s)\n", added, len(entries))
		return nil
	},
}
