package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/smdnano/internal/client"
	"github.com/ppiankov/smdnano/internal/integrity"
	"github.com/ppiankov/smdnano/internal/policy"
	"github.com/ppiankov/smdnano/internal/seeds"
	"github.com/ppiankov/smdnano/internal/server"
)

var doctorAddr string

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorAddr, "addr", server.DefaultAddr, "Broker address to probe")
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check readiness and diagnose configuration issues",
	RunE:  runDoctor,
}

type checkResult struct {
	label  string
	ok     bool
	detail string
	fix    string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := doctorChecks(context.Background(), time.Now())

	out := cmd.OutOrStdout()
	hasFailures := false
	for _, c := range checks {
		mark := "\u2713" // ✓
		if !c.ok {
			mark = "\u2717" // ✗
			hasFailures = true
		}
		line := fmt.Sprintf("%s %-20s %s", mark, c.label+":", c.detail)
		if !c.ok && c.fix != "" {
			line += fmt.Sprintf("  ->  %s", c.fix)
		}
		fmt.Fprintln(out, line)
	}

	if hasFailures {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Some checks failed. Run the suggested commands to fix.")
		return fmt.Errorf("doctor found issues")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func doctorChecks(ctx context.Context, now time.Time) []checkResult {
	var checks []checkResult

	// Binary location and pin.
	execPath, _ := os.Executable()
	if execPath == "" {
		checks = append(checks, checkResult{label: "smdnano binary", detail: "cannot determine executable path"})
	} else {
		checks = append(checks, checkResult{label: "smdnano binary", ok: true, detail: fmt.Sprintf("%s (v%s)", execPath, version)})
	}
	if _, err := os.Stat(integrity.DefaultPinPath()); err == nil || integrity.ExpectedHash != "" {
		checks = append(checks, checkResult{label: "checksum pin", ok: true, detail: "verified at startup"})
	} else {
		checks = append(checks, checkResult{label: "checksum pin", detail: "none (dev build)", fix: "smdnano integrity pin"})
	}

	// Seeds.
	if _, err := seeds.Load(seedsPath); err == nil {
		checks = append(checks, checkResult{label: "install seeds", ok: true, detail: seedsPath})
	} else {
		checks = append(checks, checkResult{label: "install seeds", detail: err.Error(), fix: "smdnano init"})
	}

	// Policy document and license.
	doc, err := policy.LoadDocument(policyPath)
	if err != nil {
		checks = append(checks, checkResult{label: "policy", detail: "not loadable, decisions fail open", fix: "smdnano init"})
	} else {
		checks = append(checks, checkResult{label: "policy", ok: true, detail: fmt.Sprintf("%s (%s)", policyPath, doc.Mode)})
		checks = append(checks, licenseCheck(doc, now))
	}

	// Broker.
	checks = append(checks, brokerCheck(ctx, doctorAddr))
	return checks
}

func licenseCheck(doc *policy.Document, now time.Time) checkResult {
	d := policy.NewWithDocument(doc, logger).Evaluate("https://example.com/", now)
	if d.IsExpired {
		return checkResult{
			label:  "license",
			detail: fmt.Sprintf("expired, counters limited to %d", max(d.AutoCounter, 1)),
			fix:    "renew license_expiry in the policy",
		}
	}
	return checkResult{label: "license", ok: true, detail: fmt.Sprintf("active, rotation epoch %d", d.AutoCounter)}
}

func brokerCheck(ctx context.Context, addr string) checkResult {
	c, err := client.New(addr)
	if err != nil {
		return checkResult{label: "broker", detail: err.Error(), fix: "smdnano serve"}
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := c.GetPolicy(ctx, "https://example.com/"); err != nil {
		return checkResult{label: "broker", detail: "not reachable at " + addr, fix: "smdnano serve"}
	}
	return checkResult{label: "broker", ok: true, detail: addr}
}
