package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/progression-backend/internal/app"
	types "github.com/yungbote/progression-backend/internal/domain"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the unlock evaluator for one actor and publish what unlocked",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("actor")
			actorID, err := uuid.Parse(raw)
			if err != nil || actorID == uuid.Nil {
				return fmt.Errorf("--actor must be a uuid")
			}
			kinds, err := parseKinds(cmd)
			if err != nil {
				return err
			}
			if err := applyConfigFlag(cmd); err != nil {
				return err
			}

			a, err := app.New(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.Services.Ledger.EnsureActor(ctx, actorID); err != nil {
				return err
			}
			set, err := a.Services.Unlocks.Evaluate(ctx, actorID, kinds...)
			if err != nil {
				return err
			}
			a.Services.Notifier.BadgesUnlocked(ctx, actorID, set)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(set)
		},
	}
	cmd.Flags().String("actor", "", "Actor id")
	cmd.Flags().StringSlice("kind", nil, "Restrict to badge kinds (badge, insignia, certificate)")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func parseKinds(cmd *cobra.Command) ([]types.BadgeKind, error) {
	raw, _ := cmd.Flags().GetStringSlice("kind")
	out := make([]types.BadgeKind, 0, len(raw))
	for _, r := range raw {
		k := types.BadgeKind(r)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown badge kind %q", r)
		}
		out = append(out, k)
	}
	return out, nil
}
