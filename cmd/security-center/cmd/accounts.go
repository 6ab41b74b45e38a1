package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/firefly/security-center/internal/infrastructure/config"
	"github.com/firefly/security-center/internal/infrastructure/db/mongo"
	"github.com/firefly/security-center/internal/infrastructure/idp/local"
)

var (
	usernameFlag string
	emailFlag    string
	passwordFlag string
	stdinFlag    bool
	partyFlag    string
	subjectFlag  string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage local accounts and identity links",
}

var createAccountCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a local identity provider account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IDP.Provider != config.ProviderLocal {
			return fmt.Errorf("accounts can only be created for the local provider (IDP_PROVIDER=%s)", cfg.IDP.Provider)
		}
		if usernameFlag == "" {
			return errors.New("--username flag is required")
		}
		if emailFlag != "" {
			if _, err := mail.ParseAddress(emailFlag); err != nil {
				return fmt.Errorf("invalid email format: %w", err)
			}
		}

		password := passwordFlag
		if stdinFlag {
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}
		if password == "" {
			return errors.New("password is required (use --password or --stdin)")
		}

		return withMongo(cmd.Context(), func(repos mongoRepos) error {
			if err := repos.accounts.EnsureIndexes(cmd.Context()); err != nil {
				return err
			}
			provider := local.New(repos.accounts, nil, local.Config{Issuer: cfg.Local.Issuer, Secret: cfg.Local.Secret})
			account, err := provider.Register(cmd.Context(), usernameFlag, password, emailFlag)
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}
			log.Info().Str("username", account.Username).Str("sub", account.Subject).Msg("account created")

			if partyFlag == "" {
				return nil
			}
			return linkParty(cmd.Context(), repos.links, account.Username, account.Subject)
		})
	},
}

var linkAccountCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a username or external subject to a directory party",
	RunE: func(cmd *cobra.Command, args []string) error {
		if partyFlag == "" {
			return errors.New("--party flag is required")
		}
		if usernameFlag == "" && subjectFlag == "" {
			return errors.New("one of --username or --subject is required")
		}
		return withMongo(cmd.Context(), func(repos mongoRepos) error {
			return linkParty(cmd.Context(), repos.links, usernameFlag, subjectFlag)
		})
	},
}

func init() {
	createAccountCmd.Flags().StringVar(&usernameFlag, "username", "", "Login name (required)")
	createAccountCmd.Flags().StringVar(&emailFlag, "email", "", "Email address")
	createAccountCmd.Flags().StringVar(&passwordFlag, "password", "", "Password")
	createAccountCmd.Flags().BoolVar(&stdinFlag, "stdin", false, "Read the password from stdin")
	createAccountCmd.Flags().StringVar(&partyFlag, "party", "", "Party id to link the new account to")

	linkAccountCmd.Flags().StringVar(&usernameFlag, "username", "", "Username to link")
	linkAccountCmd.Flags().StringVar(&subjectFlag, "subject", "", "External subject to link")
	linkAccountCmd.Flags().StringVar(&partyFlag, "party", "", "Party id (required)")

	accountsCmd.AddCommand(createAccountCmd)
	accountsCmd.AddCommand(linkAccountCmd)
}

type mongoRepos struct {
	accounts *mongo.AccountRepository
	links    *mongo.IdentityLinkRepository
}

func withMongo(ctx context.Context, fn func(mongoRepos) error) error {
	client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	return fn(mongoRepos{
		accounts: mongo.NewAccountRepository(db),
		links:    mongo.NewIdentityLinkRepository(db),
	})
}

func linkParty(ctx context.Context, links *mongo.IdentityLinkRepository, username, subject string) error {
	partyID, err := uuid.Parse(partyFlag)
	if err != nil {
		return fmt.Errorf("invalid --party: %w", err)
	}
	if err := links.EnsureIndexes(ctx); err != nil {
		return err
	}
	if username != "" {
		if err := links.Link(ctx, mongo.LinkUsername, username, partyID); err != nil {
			return err
		}
		log.Info().Str("username", username).Str("party_id", partyID.String()).Msg("username linked")
	}
	if subject != "" {
		if err := links.Link(ctx, mongo.LinkSubject, subject, partyID); err != nil {
			return err
		}
		log.Info().Str("sub", subject).Str("party_id", partyID.String()).Msg("subject linked")
	}
	return nil
}
