package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"kbmcp/internal/matcher"
	kbserver "kbmcp/internal/mcp"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

func newMatchCmd(a *app) *cobra.Command {
	var (
		kbPath string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "match <question>",
		Short: "Show how the matcher scores a question, without a model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := a.loadKnowledge(cmd.Context(), kbPath)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			result := matcher.Match(kb, query)

			if asJSON {
				report, err := kbserver.NewMatchReport(query, result)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			printMatch(cmd.OutOrStdout(), kb, query, result)
			return nil
		},
	}

	cmd.Flags().StringVar(&kbPath, "kb", "", "knowledge base file or directory (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the match report as JSON")
	return cmd
}

// printMatch lists every question by descending score, then the selection.
func printMatch(w io.Writer, kb matcher.KnowledgeBase, query string, result matcher.MatchResult) {
	fmt.Fprintf(w, "Query: %s\n", query)
	fmt.Fprintf(w, "Normalized words: [%s]\n\n", strings.Join(result.QueryTokens, " "))

	if len(kb) == 0 {
		fmt.Fprintln(w, "The knowledge base is empty.")
		return
	}

	fmt.Fprintln(w, "Scores:")
	for _, d := range result.Ranked() {
		fmt.Fprintf(w, "  Q%-3d score %d  [%s]  %s\n",
			d.Ordinal, d.Score, strings.Join(d.MatchingTokens, " "), kb[d.Ordinal-1].Question)
	}
	fmt.Fprintln(w)

	if !result.Found() {
		fmt.Fprintln(w, "No stored question shares a word with the query.")
		return
	}
	fmt.Fprintf(w, "Best match: Q%d (score %d)\n", result.Ordinal, result.Score)
	fmt.Fprintf(w, "Q: %s\n", result.Record.Question)
	fmt.Fprintf(w, "A: %s\n", wordwrap.String(result.Record.Answer, answerWidth))
}
