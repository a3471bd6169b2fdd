package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	pb "github.com/ppiankov/smdnano/api/smdnano/v1"
	"github.com/ppiankov/smdnano/internal/agent"
	"github.com/ppiankov/smdnano/internal/broker"
	"github.com/ppiankov/smdnano/internal/client"
	"github.com/ppiankov/smdnano/internal/derive"
	"github.com/ppiankov/smdnano/internal/policy"
	"github.com/ppiankov/smdnano/internal/seeds"
	"github.com/ppiankov/smdnano/internal/session"
)

var (
	genDomain      string
	genUser        string
	genCounter     int
	genLength      int
	genMode        string
	genNewPassword bool
	genAddr        string
	genTab         int
	genCopy        bool
	genClearAfter  time.Duration
)

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&genDomain, "domain", "", "Domain as seen by the caller (default: derived from the URL)")
	generateCmd.Flags().StringVarP(&genUser, "user", "u", "", "Account name bound into the derivation")
	generateCmd.Flags().IntVarP(&genCounter, "counter", "c", 0, "Rotation counter (0 = recommended)")
	generateCmd.Flags().IntVarP(&genLength, "length", "l", derive.DefaultLength, "Password length (12-64, ignored for uuid4)")
	generateCmd.Flags().StringVarP(&genMode, "mode", "m", string(derive.ModeAlphaNumSym), "Output mode: alphanumsym, base64url, uuid4 or default")
	generateCmd.Flags().BoolVar(&genNewPassword, "new", false, "Registration or password change form (skips past the license epoch)")
	generateCmd.Flags().StringVar(&genAddr, "addr", "", "Generate through a running broker instead of locally")
	generateCmd.Flags().IntVar(&genTab, "tab", 0, "Broker tab to park the secret for (0 = open a new tab)")
	generateCmd.Flags().BoolVar(&genCopy, "copy", false, "Copy to the clipboard instead of printing")
	generateCmd.Flags().DurationVar(&genClearAfter, "clear-after", 20*time.Second, "Clear the clipboard after this long (with --copy)")
}

var generateCmd = &cobra.Command{
	Use:   "generate <url>",
	Short: "Derive the password for a site",
	Long: `Prompts for the master secret and derives the password for the site at
<url>. Denied sites yield nothing; untrusted contexts yield a decoy.

Locally the password is printed (or copied with --copy). With --addr the
broker parks it for a tab and 'smdnano fill' injects it.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	master, err := readMaster(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}
	if err := derive.ValidateMaster(master); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Master check: %s\n", derive.Fingerprint(master))

	req := broker.Generate{
		Master:      master,
		TabID:       genTab,
		URL:         args[0],
		Domain:      genDomain,
		User:        genUser,
		Counter:     genCounter,
		Length:      genLength,
		Mode:        genMode,
		NewPassword: genNewPassword,
	}
	if req.Domain == "" {
		req.Domain = policy.NormalizeDomain(req.URL)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if genAddr != "" {
		return generateRemote(ctx, cmd.OutOrStdout(), req)
	}

	s, err := seeds.Load(seedsPath)
	if err != nil {
		if errors.Is(err, seeds.ErrMissing) {
			return fmt.Errorf("%w (run 'smdnano init' first)", err)
		}
		return err
	}
	res, err := generateLocal(ctx, loadEngine(), s, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Domain: %s | trust: %s | counter: %d | mode: %s | check: %s\n",
		res.Context.Domain, res.Context.Trust, res.Context.Counter, res.Context.Mode, res.Fingerprint)
	if !genCopy {
		fmt.Fprintln(cmd.OutOrStdout(), res.Password)
		return nil
	}
	return copyAndClear(res.Password, genClearAfter)
}

// generateLocal runs a single Generate command through an in-process
// broker with a one-tab browser holding the URL.
func generateLocal(ctx context.Context, engine *policy.Engine, s seeds.Seeds, req broker.Generate) (broker.GenerateResult, error) {
	browser := agent.NewBrowser(logger)
	if req.TabID == 0 {
		req.TabID = 1
	}
	browser.OpenAt(req.TabID, agent.Page{URL: req.URL})

	b := broker.New(broker.Config{
		Policy:     engine,
		Cache:      session.New(browser, engine, browser),
		Seeds:      s,
		Logger:     logger,
		PolicyHash: engine.Hash,
	})
	res, err := b.Handle(ctx, req)
	if err != nil {
		return broker.GenerateResult{}, err
	}
	return res.(broker.GenerateResult), nil
}

func generateRemote(ctx context.Context, out io.Writer, req broker.Generate) error {
	c, err := client.New(genAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	if req.TabID == 0 {
		req.TabID, err = c.OpenTab(ctx, &pb.OpenTabRequest{URL: req.URL})
		if err != nil {
			return fmt.Errorf("open tab: %w", err)
		}
	}

	resp, err := c.Generate(ctx, &pb.GenerateRequest{
		Master:      req.Master,
		TabID:       req.TabID,
		URL:         req.URL,
		Domain:      req.Domain,
		User:        req.User,
		Counter:     req.Counter,
		Length:      req.Length,
		Mode:        req.Mode,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Parked for tab %d (%s, trust %s) until %s\n",
		resp.Ctx.TabID, resp.Ctx.Domain, resp.Ctx.Trust, resp.Ctx.ExpiresAt.Local().Format(time.TimeOnly))
	fmt.Fprintf(os.Stderr, "Run: smdnano fill --addr %s %d\n", genAddr, resp.Ctx.TabID)
	if genCopy {
		return copyAndClear(resp.Password, genClearAfter)
	}
	fmt.Fprintln(out, resp.Password)
	return nil
}

// readMaster prompts without echo on a terminal and reads one line
// otherwise, so the secret can be piped.
func readMaster(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Master secret: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read master secret: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read master secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// copyAndClear writes secret to the clipboard and blocks until clearAfter
// elapses, then clears it unless the user has copied something else.
func copyAndClear(secret string, clearAfter time.Duration) error {
	if err := clipboard.WriteAll(secret); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	if clearAfter <= 0 {
		fmt.Fprintln(os.Stderr, "Copied to clipboard.")
		return nil
	}
	fmt.Fprintf(os.Stderr, "Copied to clipboard, clearing in %s.\n", clearAfter)
	time.Sleep(clearAfter)
	if current, err := clipboard.ReadAll(); err == nil && current == secret {
		return clipboard.WriteAll("")
	}
	return nil
}
