package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"actms/internal/auth"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token signed with security.jwt_secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		switch tokenRole {
		case auth.RoleAdmin, auth.RoleReviewer, auth.RoleVendor:
		default:
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		if !e.cfg.AuthEnabled() {
			return errors.New("security.jwt_secret is not set")
		}

		token, err := auth.New(e.cfg.Security.JWTSecret, e.cfg.Security.TokenExpiry).Issue(tokenSubject, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "actor recorded in audit entries")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleVendor, "admin, reviewer or vendor")
	tokenCmd.MarkFlagRequired("subject")
}
