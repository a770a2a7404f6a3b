package commands

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fivetwenty-io/hubwire/internal/constants"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// AuthStatus describes the authenticated identity.
type AuthStatus struct {
	API    string `json:"api"              yaml:"api"`
	Login  string `json:"login,omitempty"  yaml:"login,omitempty"`
	Type   string `json:"type,omitempty"   yaml:"type,omitempty"`
	Method string `json:"method"           yaml:"method"`
	Token  string `json:"token,omitempty"  yaml:"token,omitempty"`
}

// NewAuthCommand creates the auth command group.
func NewAuthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
		Long:  "Store, inspect and clear the credentials used by the hubwire CLI",
	}

	cmd.AddCommand(newAuthLoginCommand())
	cmd.AddCommand(newAuthStatusCommand())
	cmd.AddCommand(newAuthLogoutCommand())

	return cmd
}

func newAuthLoginCommand() *cobra.Command {
	var (
		token          string
		appID          string
		privateKeyPath string
		installationID int64
		skipVerify     bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store credentials",
		Long: `Store a personal access token or GitHub App credentials in the config file.

Without --with-token or --app-id the token is read from the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if appID != "" {
				config.AppID = appID
				config.PrivateKeyPath = privateKeyPath
				config.InstallationID = installationID
				config.Token = ""
				config.RefreshToken = ""
			} else {
				if token == "" {
					read, err := readToken(cmd)
					if err != nil {
						return err
					}

					token = read
				}

				if token == "" {
					return constants.ErrNoCredentials
				}

				config.Token = token
				config.RefreshToken = ""
				config.TokenExpiresAt = nil
				config.AppID = ""
			}

			if !skipVerify {
				if _, err := verifyCredentials(cmd, config); err != nil {
					return err
				}
			}

			if err := saveConfigStruct(config); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials saved")

			return nil
		},
	}

	cmd.Flags().StringVar(&token, "with-token", "", "personal access token")
	cmd.Flags().StringVar(&appID, "app-id", "", "GitHub App ID")
	cmd.Flags().StringVar(&privateKeyPath, "private-key", "", "path to the GitHub App private key (PEM)")
	cmd.Flags().Int64Var(&installationID, "installation-id", 0, "GitHub App installation ID")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "store credentials without checking them")
	cmd.MarkFlagsRequiredTogether("app-id", "private-key")

	return cmd
}

// readToken prompts for a token, hiding input on a terminal.
func readToken(cmd *cobra.Command) (string, error) {
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Token: ")

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())

		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}

		return strings.TrimSpace(string(raw)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	return strings.TrimSpace(line), nil
}

// verifyCredentials calls GET /user, or GET /app for App credentials without
// an installation, and returns the decoded identity.
func verifyCredentials(cmd *cobra.Command, config *Config) (map[string]interface{}, error) {
	hubConfig, err := clientConfig(config)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cmd.Context(), hubConfig)
	if err != nil {
		return nil, err
	}

	path := "/user"

	switch {
	case config.AppID != "" && config.InstallationID == 0:
		path = "/app"
	case config.AppID != "":
		path = "/installation/repositories?per_page=1"
	}

	req, err := client.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	identity, err := hub.Fetch(cmd.Context(), client, req, hub.DecodeJSON[map[string]interface{}])
	if err != nil {
		return nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	return identity, nil
}

func newAuthStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		Long:  "Verify the stored credentials against the API and show who they belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireCredentials(); err != nil {
				return err
			}

			config := loadConfig()

			identity, err := verifyCredentials(cmd, config)
			if err != nil {
				return err
			}

			status := AuthStatus{
				API:    formatConfigValue(config.API),
				Login:  stringField(identity, "login"),
				Type:   stringField(identity, "type"),
				Method: authMethod(config),
				Token:  maskConfig(config).Token,
			}

			if status.Login == "" {
				status.Login = stringField(identity, "slug")
			}

			return writeOutput(cmd.OutOrStdout(), status, func(table *tablewriter.Table) error {
				table.Header("Property", "Value")

				_ = table.Append([]string{"API", status.API})
				_ = table.Append([]string{"Login", formatConfigValue(status.Login)})
				_ = table.Append([]string{"Type", formatConfigValue(status.Type)})
				_ = table.Append([]string{"Method", status.Method})
				_ = table.Append([]string{"Token", formatConfigValue(status.Token)})

				return nil
			})
		},
	}
}

func newAuthLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		Long:  "Remove tokens and App credentials from the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			config.Token = ""
			config.TokenExpiresAt = nil
			config.RefreshToken = ""
			config.LastRefreshed = nil
			config.ClientSecret = ""
			config.AppID = ""
			config.PrivateKeyPath = ""
			config.InstallationID = 0

			if err := saveConfigStruct(config); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Successfully logged out")

			return nil
		},
	}
}

func authMethod(config *Config) string {
	switch {
	case config.Token != "" && config.RefreshToken == "":
		return "token"
	case config.RefreshToken != "" || config.ClientID != "":
		return "oauth2"
	case config.AppID != "" && config.InstallationID != 0:
		return "app installation"
	case config.AppID != "":
		return "app"
	default:
		return "none"
	}
}

func stringField(object map[string]interface{}, key string) string {
	value, _ := object[key].(string)

	return value
}
