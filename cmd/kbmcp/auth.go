package main

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"kbmcp/internal/credentials"

	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage API keys and the git token in the OS keyring",
		Long: fmt.Sprintf("Secrets are named %s. Environment variables take precedence over the keyring.",
			strings.Join(credentials.Names, ", ")),
	}

	set := &cobra.Command{
		Use:       "set <name> [secret]",
		Short:     "Store a secret, read from stdin when not given",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: credentials.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var secret string
			if len(args) == 2 {
				secret = args[1]
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s secret: ", name)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read secret: %w", err)
				}
				secret = strings.TrimSpace(line)
			}

			if err := a.creds.Set(name, secret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s secret %s\n", name, credentials.Mask(secret))
			return nil
		},
	}

	del := &cobra.Command{
		Use:       "delete <name>",
		Short:     "Remove a secret from the keyring",
		Args:      cobra.ExactArgs(1),
		ValidArgs: credentials.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.creds.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s secret\n", args[0])
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show where each secret is resolved from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSOURCE\tSECRET\tENV")
			for _, st := range a.creds.Statuses() {
				masked := st.Masked
				if masked == "" {
					masked = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.Name, st.Source, masked, credentials.EnvVar(st.Name))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(set, del, status)
	return cmd
}
