package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/smdnano/internal/integrity"
)

var pinPath string

func init() {
	rootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(integrityHashCmd)
	integrityCmd.AddCommand(integrityPinCmd)
	integrityPinCmd.Flags().StringVar(&pinPath, "path", integrity.DefaultPinPath(), "Checksum file to write")
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Binary checksum pinning",
	Long:  "Every command verifies the running binary against the build-time hash\nor the pinned checksum file before doing anything else.",
}

var integrityHashCmd = &cobra.Command{
	Use:   "hash",
	Short: "Print the SHA-256 of the running binary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := integrity.HashSelf()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), sum)
		return nil
	},
}

var integrityPinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Pin the running binary's checksum",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pin, err := integrity.WritePin(pinPath, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pinned %s\n  sha256: %s\n  file:   %s\n", pin.Binary, pin.SHA256, pinPath)
		return nil
	},
}
