package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askJSON    bool
	askSession string
)

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the response as JSON")
	askCmd.Flags().StringVar(&askSession, "session", "", "continue a stored session (implies --memory persistent)")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Long: `Ask a single question and print the answer. The question is taken from the
arguments, or from stdin when none are given or the only argument is "-".

Examples:
  askd ask "What does the deployment guide say about rollbacks?"
  askd ask --mode web_search "latest Go release"
  echo "summarize the manual" | askd ask --json -`,
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question, err := readQuestion(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if askSession != "" {
		memoryFlag = "persistent"
	}

	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	if askSession != "" {
		if err := rt.engine.LoadSession(cmd.Context(), askSession); err != nil {
			return err
		}
	}

	resp := rt.engine.ProcessQuery(cmd.Context(), question)
	if askJSON {
		return outputJSON(cmd.OutOrStdout(), resp)
	}
	if resp.Sensitive {
		fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("! "+sensitiveNotice))
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
	return nil
}

// readQuestion joins args into a question, reading r when args are empty or
// a single "-".
func readQuestion(r io.Reader, args []string) (string, error) {
	var q string
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		q = string(b)
	} else {
		q = strings.Join(args, " ")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", fmt.Errorf("no question given")
	}
	return q, nil
}

