package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/askd/internal/config"
	"github.com/fyrsmithlabs/askd/internal/privacy"
)

var scrubReport bool

func init() {
	scrubCmd.Flags().BoolVar(&scrubReport, "report", false, "print redaction counts per category to stderr")
	rootCmd.AddCommand(scrubCmd)
}

var scrubCmd = &cobra.Command{
	Use:   "scrub [file]",
	Short: "Redact sensitive data from a file or stdin",
	Long: `Redact sensitive data from a file or stdin with the same privacy filter
the engine applies to every query. The filter runs even when it is disabled
in configuration.

Examples:
  # Scrub a file
  askd scrub notes.txt

  # Scrub from stdin
  cat output.log | askd scrub -

  # Show what was redacted
  askd scrub --report notes.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScrub,
}

func runScrub(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}
	if len(content) == 0 {
		return fmt.Errorf("no content to scrub")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f, err := newScrubFilter(cfg)
	if err != nil {
		return err
	}

	res := f.Scrub(string(content))
	fmt.Fprint(cmd.OutOrStdout(), res.Text)
	if scrubReport {
		writeScrubReport(cmd.ErrOrStderr(), res.Counts)
	}
	return nil
}

// newScrubFilter builds an always-enabled filter from the privacy section.
func newScrubFilter(cfg *config.Config) (*privacy.Filter, error) {
	path, err := config.ExpandPath(cfg.Privacy.AllowlistPath)
	if err != nil {
		return nil, err
	}
	allow, err := privacy.LoadAllowlist(path)
	if err != nil {
		return nil, err
	}
	return privacy.New(&privacy.Config{
		Enabled:    true,
		AllowList:  allow,
		SecretScan: cfg.Privacy.SecretScan,
	})
}

func writeScrubReport(w io.Writer, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, dimStyle.Render("[askd] nothing redacted"))
		return
	}
	names := make([]string, 0, len(counts))
	total := 0
	for name, n := range counts {
		names = append(names, name)
		total += n
	}
	sort.Strings(names)
	fmt.Fprintf(w, "\n[askd] redacted %d item(s)\n", total)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %d\n", name, counts[name])
	}
}
