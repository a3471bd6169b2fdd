package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/smdnano/internal/model"
	"github.com/ppiankov/smdnano/internal/policy"
)

var (
	policyAt          string
	policyNewPassword bool
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyCheckCmd)
	policyCmd.AddCommand(policyInspectCmd)
	policyCmd.AddCommand(policyValidateCmd)
	policyCheckCmd.Flags().StringVar(&policyAt, "at", "", "Evaluate at this instant (RFC3339, default now)")
	policyCheckCmd.Flags().BoolVar(&policyNewPassword, "new", false, "Recommend the counter for a registration or password change form")
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the site policy",
}

var policyCheckCmd = &cobra.Command{
	Use:   "check <url>",
	Short: "Evaluate a URL against the policy document",
	Long:  "Prints the decision as JSON: access, trust tier, salt label, domain and\nrotation counters, plus the recommended and maximum counter.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyCheck,
}

var policyInspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Grade a URL for insecure protocol or phishing traits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := json.MarshalIndent(policy.Inspect(args[0]), "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Parse the policy document and report its hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, hash, err := policy.LoadDocumentWithHash(policyPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %s (mode %s, %d trusted contexts, %d overrides, %s)\n",
			policyPath, doc.Mode, len(doc.TrustedContexts), len(doc.Overrides), hash)
		return nil
	},
}

type checkOutput struct {
	model.PolicyDecision
	RecommendedCounter int  `json:"recommendedCounter"`
	MaxCounter         *int `json:"maxCounter,omitempty"`
}

func runPolicyCheck(cmd *cobra.Command, args []string) error {
	at := time.Now()
	if policyAt != "" {
		t, err := time.Parse(time.RFC3339, policyAt)
		if err != nil {
			return fmt.Errorf("invalid --at time %q: %w", policyAt, err)
		}
		at = t
	}

	d := loadEngine().Evaluate(args[0], at)
	res := checkOutput{
		PolicyDecision:     d,
		RecommendedCounter: policy.RecommendCounter(d, policyNewPassword),
	}
	if limit, ok := policy.MaxCounter(d); ok {
		res.MaxCounter = &limit
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
