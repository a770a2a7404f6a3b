package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/hubwire/internal/constants"
)

const (
	configDirName  = ".hubwire"
	configFileName = "config.yml"
)

// Static errors for err113 compliance.
var (
	ErrUnknownConfigKey = errors.New("unknown configuration key")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Config represents the CLI configuration.
type Config struct {
	API            string     `json:"api,omitempty"              yaml:"api,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	RefreshToken   string     `json:"refresh_token,omitempty"    yaml:"refresh_token,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	AppID          string     `json:"app_id,omitempty"           yaml:"app_id,omitempty"`
	PrivateKeyPath string     `json:"private_key_path,omitempty" yaml:"private_key_path,omitempty"`
	InstallationID int64      `json:"installation_id,omitempty"  yaml:"installation_id,omitempty"`
	Output         string     `json:"output"                     yaml:"output"`
}

// configKeys maps settable keys to their setters.
var configKeys = map[string]func(*Config, string) error{
	"api":           func(c *Config, v string) error { c.API = v; return nil },
	"token":         func(c *Config, v string) error { c.Token = v; return nil },
	"refresh_token": func(c *Config, v string) error { c.RefreshToken = v; return nil },
	"client_id":     func(c *Config, v string) error { c.ClientID = v; return nil },
	"client_secret": func(c *Config, v string) error { c.ClientSecret = v; return nil },
	"token_url":     func(c *Config, v string) error { c.TokenURL = v; return nil },
	"app_id":        func(c *Config, v string) error { c.AppID = v; return nil },
	"private_key_path": func(c *Config, v string) error {
		c.PrivateKeyPath = v

		return nil
	},
	"installation_id": func(c *Config, v string) error {
		if v == "" {
			c.InstallationID = 0

			return nil
		}

		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", constants.ErrInstallationIDInvalid, v)
		}

		c.InstallationID = id

		return nil
	},
	"output": func(c *Config, v string) error {
		if v != "" && !validOutputFormat(v) {
			return constants.ErrInvalidOutputFormat
		}

		c.Output = v

		return nil
	},
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage hubwire CLI configuration including endpoint, credentials and output settings",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigUnsetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskConfig(loadConfig())

			return writeOutput(cmd.OutOrStdout(), config, func(table *tablewriter.Table) error {
				table.Header("Property", "Value")

				_ = table.Append([]string{"API", formatConfigValue(config.API)})
				_ = table.Append([]string{"Token", formatConfigValue(config.Token)})
				_ = table.Append([]string{"Refresh Token", formatConfigValue(config.RefreshToken)})
				_ = table.Append([]string{"Client ID", formatConfigValue(config.ClientID)})
				_ = table.Append([]string{"Token URL", formatConfigValue(config.TokenURL)})
				_ = table.Append([]string{"App ID", formatConfigValue(config.AppID)})
				_ = table.Append([]string{"Private Key", formatConfigValue(config.PrivateKeyPath)})
				_ = table.Append([]string{"Installation ID", formatConfigValue(formatInt(config.InstallationID))})
				_ = table.Append([]string{"Output", formatConfigValue(config.Output)})

				return nil
			})
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a specific configuration value",
		Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if err := setConfigValue(config, args[0], args[1]); err != nil {
				return err
			}

			if err := saveConfigStruct(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s\n", args[0])

			return nil
		},
	}
}

func newConfigUnsetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "unset KEY",
		Short: "Unset a configuration value",
		Long:  "Remove a specific configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if err := setConfigValue(config, args[0], ""); err != nil {
				return err
			}

			if err := saveConfigStruct(config); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset %s\n", args[0])

			return nil
		},
	}
}

func setConfigValue(config *Config, key, value string) error {
	setter, ok := configKeys[strings.ToLower(strings.ReplaceAll(key, "-", "_"))]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConfigKey, key)
	}

	return setter(config, value)
}

// loadConfig reads the configuration viper has loaded from file and environment.
func loadConfig() *Config {
	config := &Config{
		API:            viper.GetString("api"),
		Token:          viper.GetString("token"),
		RefreshToken:   viper.GetString("refresh_token"),
		ClientID:       viper.GetString("client_id"),
		ClientSecret:   viper.GetString("client_secret"),
		TokenURL:       viper.GetString("token_url"),
		AppID:          viper.GetString("app_id"),
		PrivateKeyPath: viper.GetString("private_key_path"),
		InstallationID: viper.GetInt64("installation_id"),
		Output:         viper.GetString("output"),
	}

	if viper.IsSet("token_expires_at") {
		if expiresAt := viper.GetTime("token_expires_at"); !expiresAt.IsZero() {
			config.TokenExpiresAt = &expiresAt
		}
	}

	if viper.IsSet("last_refreshed") {
		if refreshed := viper.GetTime("last_refreshed"); !refreshed.IsZero() {
			config.LastRefreshed = &refreshed
		}
	}

	return config
}

func configFilePath() (string, error) {
	if configFile := viper.ConfigFileUsed(); configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, configDirName, configFileName), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(configFile), constants.ConfigDirPerm)
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	viper.SetConfigFile(configFile)

	return viper.ReadInConfig() //nolint:wrapcheck // viper error already names the file
}

func maskConfig(config *Config) *Config {
	masked := *config

	for _, secret := range []*string{&masked.Token, &masked.RefreshToken, &masked.ClientSecret} {
		if *secret != "" {
			*secret = constants.MaskedSecret
		}
	}

	return &masked
}

func formatConfigValue(value string) string {
	if value == "" {
		return "-"
	}

	return value
}

func formatInt(value int64) string {
	if value == 0 {
		return ""
	}

	return strconv.FormatInt(value, 10)
}
