package main

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
)

const answerWidth = 80

func newAskCmd(a *app) *cobra.Command {
	var (
		flags     clientFlags
		showMatch bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			assistant, session, err := a.newAssistant(ctx, flags)
			if err != nil {
				return err
			}
			defer session.Close()

			answer, err := assistant.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, wordwrap.String(strings.TrimSpace(answer.Text), answerWidth))

			errOut := cmd.ErrOrStderr()
			if showMatch {
				fmt.Fprintln(errOut)
				switch {
				case !answer.UsedTool:
					fmt.Fprintln(errOut, "The model answered without calling the knowledge base tool.")
				case answer.Match.Found():
					fmt.Fprintf(errOut, "Matched Q%d (score %d): %s\n",
						answer.Match.Ordinal, answer.Match.Score, answer.Match.Record.Question)
				default:
					fmt.Fprintln(errOut, "No stored question shares a word with the query.")
				}
			}

			total := assistant.Tracker().Total()
			estimated := ""
			if total.Estimated {
				estimated = " (partly estimated)"
			}
			fmt.Fprintf(errOut, "\nTokens used: %d prompt, %d completion, %d total over %d model calls%s\n",
				total.PromptTokens, total.CompletionTokens, total.TotalTokens, total.Calls, estimated)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&showMatch, "show-match", false, "print the matched knowledge base entry")
	return cmd
}
