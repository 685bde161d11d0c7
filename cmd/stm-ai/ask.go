package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/confirm"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/intent"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/protocol"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/store"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Run one typed request and print the frames a client would receive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := setupLogger(cfg.Log)
		userID, _ := cmd.Flags().GetString("user")
		if userID == "" {
			userID = cfg.Server.DefaultUserID
		}
		yes, _ := cmd.Flags().GetBool("yes")

		exec, err := store.New(cfg.DB.Config, logger)
		if err != nil {
			return err
		}
		defer exec.Close()

		svc, err := buildServices(cfg, exec, logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		out := &jsonLines{w: cmd.OutOrStdout()}
		ledger := confirm.NewLedger(cfg.Confirm.TTL, confirm.DefaultSize)
		err = svc.Router.Handle(ctx, out, ledger, intent.Utterance{
			Text:   strings.Join(args, " "),
			UserID: userID,
			Source: intent.SourceText,
		})
		if err != nil {
			return err
		}

		p, ok := out.proposal()
		if !ok {
			return nil
		}
		if !yes {
			fmt.Fprintln(cmd.ErrOrStderr(), "not executed; pass --yes to confirm")
			return nil
		}
		return svc.Workflow.Execute(ctx, out, ledger, confirm.Request{SQL: *p.SQLToExecute, Token: p.ConfirmationID})
	},
}

func init() {
	askCmd.Flags().String("user", "", "user id the request runs as (default STM_DEFAULT_USER_ID)")
	askCmd.Flags().Bool("yes", false, "confirm a proposed change immediately")
}

// jsonLines prints each frame as one line of JSON.
type jsonLines struct {
	mu   sync.Mutex
	w    io.Writer
	last protocol.Display
}

func (j *jsonLines) Send(ctx context.Context, v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if d, ok := v.(protocol.Display); ok {
		j.last = d
	}
	return json.NewEncoder(j.w).Encode(v)
}

func (j *jsonLines) proposal() (protocol.Display, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last, j.last.RequiresConfirmation && j.last.SQLToExecute != nil
}
