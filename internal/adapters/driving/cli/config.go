package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage settings",
	Long: `View and change settings stored in the config file.

Every key can also be overridden with an environment variable named after it,
e.g. store.driver -> SERCHA_SYNC_STORE_DRIVER.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Parses and stores one setting. Durations use Go syntax (30s, 5m) and
lists are comma separated.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore one setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every setting key",
	RunE:  runConfigKeys,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}

	section := ""
	for _, key := range settings.Keys() {
		value, err := settings.Value(key)
		if err != nil {
			return fmt.Errorf("failed to get %s: %w", key, err)
		}
		group, name, _ := strings.Cut(key, ".")
		if group != section {
			if section != "" {
				cmd.Println()
			}
			cmd.Printf("[%s]\n", group)
			section = group
		}
		cmd.Printf("  %s = %s\n", name, displayValue(key, value))
	}

	if _, err := settings.Get(); err != nil {
		cmd.Println()
		cmd.Printf("Warning: %v\n", err)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}
	value, err := settings.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}
	if err := settings.Set(args[0], args[1]); err != nil {
		return err
	}
	cmd.Printf("%s updated.\n", args[0])

	if _, err := settings.Get(); err != nil {
		cmd.Printf("Warning: settings are not valid yet: %v\n", err)
	}
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}
	if err := settings.Unset(args[0]); err != nil {
		return err
	}
	value, err := settings.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Printf("%s reset to %s.\n", args[0], displayValue(args[0], value))
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	settings, err := settingsService()
	if err != nil {
		return err
	}
	for _, key := range settings.Keys() {
		cmd.Println(key)
	}
	return nil
}

// displayValue hides the password in connection URLs.
func displayValue(key, value string) string {
	if value == "" {
		return "(not set)"
	}
	if !strings.HasSuffix(key, ".url") {
		return value
	}
	u, err := url.Parse(value)
	if err != nil {
		return value
	}
	return u.Redacted()
}
