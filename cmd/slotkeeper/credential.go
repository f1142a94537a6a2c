package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slotkeeper/backend/internal/domain"
	"slotkeeper/backend/internal/store/postgres"
)

var providerKinds = map[string]domain.ProviderKind{
	domain.ProviderGoogleCalendar: domain.ProviderKindCalendar,
	domain.ProviderZoomVideo:      domain.ProviderKindVideo,
}

func newCredentialCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage provider credentials",
	}
	cmd.AddCommand(newCredentialAddCmd(opts))
	return cmd
}

func newCredentialAddCmd(opts *rootOptions) *cobra.Command {
	var (
		userID     int64
		providerID string
		tokenFile  string
		calendars  []string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Seal an OAuth token and store it as an integration for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFor(providerID)
			if err != nil {
				return err
			}
			token, err := readToken(tokenFile)
			if err != nil {
				return err
			}

			cfg, log, err := opts.load("credential")
			if err != nil {
				return err
			}
			sealer, err := postgres.NewSealer(cfg.CredentialKey)
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeDB(db, log)

			id, err := postgres.NewCredentialRepo(db, sealer).Save(cmd.Context(), userID, kind, providerID, token, calendars)
			if err != nil {
				return fmt.Errorf("save credential: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored credential %d (%s) for user %d\n", id, providerID, userID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "owner of the integration")
	cmd.Flags().StringVar(&providerID, "provider", "", "provider id (google_calendar or zoom_video)")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "path to an OAuth token JSON file")
	cmd.Flags().StringSliceVar(&calendars, "calendar", nil, "selected calendar id; repeatable")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("token-file")
	return cmd
}

func kindFor(providerID string) (domain.ProviderKind, error) {
	kind, ok := providerKinds[providerID]
	if !ok {
		return "", fmt.Errorf("unknown provider %q", providerID)
	}
	return kind, nil
}

func readToken(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("token file %s: %w", path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file %s has neither access_token nor refresh_token", path)
	}
	return b, nil
}
