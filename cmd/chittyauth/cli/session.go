package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chittyapps/chittyauth-app/internal/config"
	"github.com/chittyapps/chittyauth-app/internal/service"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage operator sessions",
		Long:  "Mint operator session tokens for the management API (provisioning, revocation, stats).",
	}

	cmd.AddCommand(newSessionCreateCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var (
		operatorID string
		name       string
		ttl        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an operator session token",
		Long:  "Create a signed session JWT for calling the management endpoints as an operator.",
		Example: `  chittyauth session create --id alice --name "Alice" --ttl 8h
  curl -H "Authorization: Bearer $TOKEN" http://localhost:8080/api/v1/stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionCreate(operatorID, name, ttl)
		},
	}

	cmd.Flags().StringVar(&operatorID, "id", "", "Operator identifier (required)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Session lifetime (default from auth.session_expiry)")
	cmd.MarkFlagRequired("id")

	return cmd
}

func runSessionCreate(operatorID, name string, ttl time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	if ttl <= 0 {
		ttl = config.DurationOr(cfg.Auth.SessionExpiry, 8*time.Hour)
	}

	signingKey, err := resolveSigningKey(cfg, logger)
	if err != nil {
		return err
	}
	sessions := service.NewSessionService(resolveSessionSecret(cfg, signingKey))

	token, err := sessions.IssueSession(context.Background(), operatorID, name, ttl)
	if err != nil {
		return fmt.Errorf("issue session: %w", err)
	}

	fmt.Println("Operator session created:")
	fmt.Println()
	fmt.Printf("  Token:    %s\n", token)
	fmt.Printf("  Operator: %s\n", operatorID)
	fmt.Printf("  Expires:  %s\n", time.Now().Add(ttl).Format(time.RFC3339))
	return nil
}
