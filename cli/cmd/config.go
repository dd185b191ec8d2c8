package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vault configuration",
	Long:  "View and edit the configuration file used by the other commands.",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	Long:  "Display the merged configuration from the config file, environment variables and flags.",
	RunE:  runConfigView,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  "Get a configuration value. The key uses dot notation (e.g. vault.store_type).",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Write a configuration value to the config file. The key uses dot notation.",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var validConfigKeys = []string{
	"vault.path",
	"vault.store_type",
	"vault.no_mlock",
	"audit.enabled",
	"audit.options.file_path",
}

func isValidConfigKey(key string) bool {
	for _, valid := range validConfigKeys {
		if key == valid {
			return true
		}
	}
	return false
}

func runConfigView(cmd *cobra.Command, args []string) error {
	settings := viper.AllSettings()

	// The password never belongs in printed or persisted configuration.
	if v, ok := settings["vault"].(map[string]interface{}); ok {
		delete(v, "password")
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown configuration key: %s (valid: %s)", key, strings.Join(validConfigKeys, ", "))
	}
	fmt.Printf("%v\n", viper.Get(key))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown configuration key: %s (valid: %s)", key, strings.Join(validConfigKeys, ", "))
	}

	configFile := configFilePath()
	config := map[string]interface{}{}

	if data, err := os.ReadFile(configFile); err == nil {
		if err = yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", configFile, err)
		}
	}

	setNestedKey(config, key, convertStringValue(value))

	out, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	if err = os.WriteFile(configFile, out, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFile, err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, configFile)
	return nil
}

func configFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".noteece-vault.yaml"
	}
	return filepath.Join(home, ".noteece-vault.yaml")
}

func setNestedKey(config map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	current := config
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func convertStringValue(value string) interface{} {
	if value == "true" || value == "false" {
		return value == "true"
	}
	return value
}
