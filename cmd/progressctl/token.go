package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/progression-backend/internal/services"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("actor")
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			actorID, err := uuid.Parse(raw)
			if err != nil || actorID == uuid.Nil {
				return fmt.Errorf("--actor must be a uuid")
			}
			if role != "" && role != services.RoleAdmin {
				return fmt.Errorf("unknown role %q", role)
			}

			log, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			defer log.Sync()

			auth := services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL())
			tok, err := auth.MintToken(actorID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("actor", "", "Actor id (token subject)")
	cmd.Flags().String("role", "", "Optional role (admin)")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}
