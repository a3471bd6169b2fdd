package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/smdnano/internal/integrity"
	"github.com/ppiankov/smdnano/internal/logging"
	"github.com/ppiankov/smdnano/internal/policy"
	"github.com/ppiankov/smdnano/internal/seeds"
)

var (
	policyPath string
	seedsPath  string
	logLevel   string
	logFormat  string

	logger = logging.Discard()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", policy.DefaultPath(), "Path to policy document (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&seedsPath, "seeds", seeds.DefaultPath(), "Path to install seed file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

var rootCmd = &cobra.Command{
	Use:   "smdnano",
	Short: "Deterministic site password generator",
	Long: `Derives per-site passwords from a master secret, the site's domain and a
policy document. Nothing is stored: the same inputs always yield the same
password. Untrusted contexts receive decoys and denied sites receive nothing.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		l, err := logging.New(logging.Config{Level: logLevel, Format: logFormat})
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadEngine() *policy.Engine {
	engine := policy.New(policy.FileSource(policyPath), logger)
	if err := engine.Reload(); err != nil {
		logger.Warn("policy not loaded, decisions fail open", "path", policyPath, "error", err)
	}
	return engine
}
