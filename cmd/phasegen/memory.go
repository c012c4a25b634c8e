package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// memoryCmd inspects and edits the persisted key/value store.
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect or edit the persisted phase memory",
}

var memoryGetCmd = &cobra.Command{
	Use:   "get <phase> <key>",
	Short: "Print one stored value",
	Args:  cobra.ExactArgs(2),
	RunE:  runMemoryGet,
}

var memorySetCmd = &cobra.Command{
	Use:   "set <phase> <key> <value|->",
	Short: "Store a value; '-' reads it from stdin",
	Args:  cobra.ExactArgs(3),
	RunE:  runMemorySet,
}

var memoryDumpCmd = &cobra.Command{
	Use:   "dump [phase]",
	Short: "Print the store (or one phase) as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMemoryDump,
}

var memoryPhasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "List stored phases with their key counts",
	RunE:  runMemoryPhases,
}

func init() {
	memoryCmd.AddCommand(memoryGetCmd)
	memoryCmd.AddCommand(memorySetCmd)
	memoryCmd.AddCommand(memoryDumpCmd)
	memoryCmd.AddCommand(memoryPhasesCmd)
}

func runMemoryGet(cmd *cobra.Command, args []string) error {
	store, backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if err := requireBackend(backend); err != nil {
		return err
	}
	defer backend.Close()
	value, ok := store.Lookup(args[0], args[1])
	if !ok {
		return fmt.Errorf("%s/%s is not stored", args[0], args[1])
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runMemorySet(cmd *cobra.Command, args []string) error {
	value := args[2]
	if value == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		value = strings.TrimRight(string(data), "\n")
	}
	store, backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if err := requireBackend(backend); err != nil {
		return err
	}
	defer backend.Close()
	store.Set(args[0], args[1], value)
	return store.Persist(cmd.Context(), backend)
}

func runMemoryDump(cmd *cobra.Command, args []string) error {
	store, backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if err := requireBackend(backend); err != nil {
		return err
	}
	defer backend.Close()
	var payload any = store.Snapshot()
	if len(args) == 1 {
		payload = store.Phase(args[0])
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func runMemoryPhases(cmd *cobra.Command, args []string) error {
	store, backend, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	if err := requireBackend(backend); err != nil {
		return err
	}
	defer backend.Close()
	out := cmd.OutOrStdout()
	phases := store.Phases()
	if len(phases) == 0 {
		fmt.Fprintln(out, "The store is empty.")
		return nil
	}
	for _, phase := range phases {
		fmt.Fprintf(out, "%s\t%d keys\n", phase, len(store.Phase(phase)))
	}
	return nil
}
