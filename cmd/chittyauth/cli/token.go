package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chittyapps/chittyauth-app/internal/engine"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
		Long:  "Provision, validate, refresh, and revoke bearer tokens directly against the local store.",
	}

	cmd.AddCommand(newTokenCreateCmd())
	cmd.AddCommand(newTokenValidateCmd())
	cmd.AddCommand(newTokenRefreshCmd())
	cmd.AddCommand(newTokenRevokeCmd())

	return cmd
}

// ---------- token create ----------

func newTokenCreateCmd() *cobra.Command {
	var (
		subject string
		scopes  []string
		svcName string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a new bearer token",
		Long:  "Mint a new signed bearer token. The raw token is shown once and cannot be retrieved again.",
		Example: `  chittyauth token create --subject user-42 --scope orders:read --service checkout
  chittyauth token create --subject ci --scope "admin:*" --service pipeline --ttl 15m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenCreate(subject, scopes, svcName, ttl)
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject the token acts for (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "Scope as resource:action, repeatable (required)")
	cmd.Flags().StringVar(&svcName, "service", "", "Consuming service name (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default from config)")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("scope")
	cmd.MarkFlagRequired("service")

	return cmd
}

func runTokenCreate(subject string, scopes []string, svcName string, ttl time.Duration) error {
	stk, err := openStack()
	if err != nil {
		return err
	}
	defer stk.Close()

	result, err := stk.Engine.Provision(context.Background(), engine.ProvisionRequest{
		SubjectID:   subject,
		Scope:       scopes,
		ServiceName: svcName,
		TTL:         ttl,
	})
	if err != nil {
		return fmt.Errorf("provision token: %w", err)
	}

	fmt.Println("Token created:")
	fmt.Println()
	fmt.Printf("  Token:      %s\n", result.Token)
	fmt.Printf("  Token ID:   %s\n", result.TokenID)
	fmt.Printf("  Subject:    %s\n", result.SubjectID)
	fmt.Printf("  Service:    %s\n", result.ServiceName)
	fmt.Printf("  Scope:      %v\n", result.Scope)
	fmt.Printf("  Expires:    %s\n", result.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  Rate limit: %d/%s (%s tier)\n", result.RateLimit.Limit, result.RateLimit.Window, result.RateLimit.Tier)
	fmt.Println()
	fmt.Println("  Save this token now - it cannot be retrieved again.")
	return nil
}

// ---------- token validate ----------

func newTokenValidateCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Validate a bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenValidate(args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the verdict as JSON")

	return cmd
}

func runTokenValidate(raw string, jsonOutput bool) error {
	stk, err := openStack()
	if err != nil {
		return err
	}
	defer stk.Close()

	v, err := stk.Engine.Validate(context.Background(), raw)
	if err != nil {
		return fmt.Errorf("validate token: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if !v.Valid {
		fmt.Printf("INVALID (%s)\n", v.Reason)
		return nil
	}

	fmt.Println("VALID")
	fmt.Printf("  Token ID: %s\n", v.TokenID)
	fmt.Printf("  Subject:  %s\n", v.SubjectID)
	fmt.Printf("  Service:  %s\n", v.ServiceName)
	fmt.Printf("  Scope:    %v\n", v.Scope)
	fmt.Printf("  Expires:  %s\n", v.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  Remaining this window: %d\n", v.RateLimitRemaining)
	return nil
}

// ---------- token refresh ----------

func newTokenRefreshCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "refresh <token>",
		Short: "Exchange a valid token for a fresh one",
		Long:  "Revoke the presented token and mint a replacement with the same subject, scope, and service.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRefresh(args[0], ttl)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime of the replacement token (default from config)")

	return cmd
}

func runTokenRefresh(raw string, ttl time.Duration) error {
	stk, err := openStack()
	if err != nil {
		return err
	}
	defer stk.Close()

	result, denied, err := stk.Engine.Refresh(context.Background(), raw, ttl)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	if denied != nil {
		return fmt.Errorf("token did not validate: %s", denied.Reason)
	}

	fmt.Println("Token refreshed:")
	fmt.Println()
	fmt.Printf("  Token:    %s\n", result.Token)
	fmt.Printf("  Token ID: %s\n", result.TokenID)
	fmt.Printf("  Expires:  %s\n", result.ExpiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  The old token has been revoked. Save this one now.")
	return nil
}

// ---------- token revoke ----------

func newTokenRevokeCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke a token by its id",
		Long:  "Invalidate a token. Revocation is permanent and idempotent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRevoke(args[0], reason)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "revoked", "Reason recorded with the revocation")

	return cmd
}

func runTokenRevoke(tokenID, reason string) error {
	stk, err := openStack()
	if err != nil {
		return err
	}
	defer stk.Close()

	result, err := stk.Engine.Revoke(context.Background(), tokenID, reason)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	fmt.Printf("Revoked %s at %s (%s)\n", result.TokenID,
		result.RevokedAt.Format(time.RFC3339), result.Reason)
	return nil
}

// openStack loads config and builds the full token stack for a one-shot
// CLI command.
func openStack() (*stack, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildStack(cfg, newLogger(cfg.Logging))
}
