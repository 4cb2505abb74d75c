package main

import (
	"kbmcp/internal/tui"
	"kbmcp/internal/tui/helpers"

	"github.com/spf13/cobra"
)

func newChatCmd(a *app) *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the knowledge base in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			assistant, session, err := a.newAssistant(ctx, flags)
			if err != nil {
				return err
			}
			defer session.Close()

			// Dimensions arrive with the first WindowSizeMsg.
			uiCtx := helpers.NewUIContext(0, 0, assistant, assistant.Tracker(), a.logger)
			uiCtx.Ctx = ctx
			uiCtx.Provider = assistant.ModelName()
			return tui.Run(uiCtx)
		},
	}

	flags.register(cmd)
	return cmd
}
