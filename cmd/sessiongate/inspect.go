package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/domain"
)

type inspection struct {
	Claims   *domain.Claims `json:"claims,omitempty"`
	Verdict  auth.Verdict   `json:"verdict,omitempty"`
	Roles    []string       `json:"required_roles,omitempty"`
	At       time.Time      `json:"at"`
	Error    string         `json:"error,omitempty"`
	Expiring string         `json:"expires_in,omitempty"`
}

func inspectCmd() *cobra.Command {
	var (
		roles []string
		at    string
	)

	cmd := &cobra.Command{
		Use:   "inspect <credential>",
		Short: "Decode a credential and classify it",
		Long: `Decode a credential without verifying its signature and report the
verdict the guard would reach for it.

Examples:
  sessiongate inspect eyJhbGciOi...
  sessiongate inspect eyJhbGciOi... --role admin --at 2026-03-01T12:00:00Z`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: %w", at, err)
				}
				now = parsed
			}

			policy := auth.NewPolicy(roles...)
			result := inspection{Roles: policy.Roles(), At: now}

			claims, err := auth.NewTokenDecoder().Decode(args[0])
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Claims = claims
				result.Verdict = policy.Classify(claims, now)
				if claims.ExpiresAt != nil && claims.ExpiresAt.After(now) {
					result.Expiring = claims.ExpiresAt.Sub(now).Round(time.Second).String()
				}
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(result); err != nil {
				return err
			}
			if result.Error != "" {
				return fmt.Errorf("credential is malformed")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", nil, "accepted role (repeatable); empty accepts any role")
	cmd.Flags().StringVar(&at, "at", "", "evaluate at this RFC3339 instant instead of now")
	return cmd
}
