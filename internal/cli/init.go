package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/smdnano/internal/policy"
	"github.com/ppiankov/smdnano/internal/seeds"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing policy document (seeds are never overwritten)")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create install seeds and a default policy document",
	Long: `Creates the install seed file and a commented default policy document.

Seeds are generated once per install and never rewritten: replacing them
changes every derived password. The policy is written only when missing
unless --force is given.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	var created []string

	_, wroteSeeds, err := seeds.Ensure(seedsPath)
	if err != nil {
		return fmt.Errorf("install seeds: %w", err)
	}
	if wroteSeeds {
		created = append(created, seedsPath)
	}

	content := policy.DefaultDocumentYAML(time.Now().UTC())
	if wrote, err := writeIfMissing(policyPath, content); err != nil {
		return err
	} else if wrote {
		created = append(created, policyPath)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "smdnano init complete.")
	fmt.Fprintln(out)
	if len(created) > 0 {
		fmt.Fprintln(out, "Created:")
		for _, path := range created {
			fmt.Fprintf(out, "  %s\n", path)
		}
	} else {
		fmt.Fprintln(out, "All files already exist (use --force to overwrite the policy).")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next:")
	fmt.Fprintln(out, "  smdnano policy check https://example.com/login")
	fmt.Fprintln(out, "  smdnano generate https://example.com/login")
	return nil
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
