package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	vault "github.com/AmirrezaFarnamTaheri/noteece-vault"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/audit"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/biometric"
	"github.com/AmirrezaFarnamTaheri/noteece-vault/persist"
)

var (
	cfgFile     string
	storePath   string
	vaultSvc    *vault.Service
	vaultStore  persist.Store
	auditLogger audit.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "noteece-vault",
	Short: "Local vault managing the keys that protect on-device data",
	Long: `A local vault that derives encryption keys from a master password.
The password never stores anywhere; it derives a key-encryption key (Argon2id)
that wraps a random data encryption key with ChaCha20-Poly1305. Unlocking can
optionally go through the platform credential store behind a biometric prompt.`,
	PersistentPreRunE: initializeService,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if vaultSvc != nil {
			_ = vaultSvc.Close()
		}
		if vaultStore != nil {
			_ = vaultStore.Close()
		}
		if auditLogger != nil {
			_ = auditLogger.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.noteece-vault.yaml)")
	rootCmd.PersistentFlags().StringVarP(&storePath, "store-path", "p", "", "path to vault storage")
	rootCmd.PersistentFlags().String("store-type", "", "storage backend type (filesystem, bolt)")
	rootCmd.PersistentFlags().String("password", "", "vault password (or use NOTEECE_VAULT_PASSWORD env var)")
	rootCmd.PersistentFlags().Bool("no-mlock", false, "disable memory page locking")

	bindFlagOrPanic("vault.path", "store-path")
	bindFlagOrPanic("vault.store_type", "store-type")
	bindFlagOrPanic("vault.password", "password")
	bindFlagOrPanic("vault.no_mlock", "no-mlock")

	rootCmd.PersistentFlags().Bool("audit", false, "enable audit logging")
	rootCmd.PersistentFlags().String("audit-file", "", "audit log file path")

	bindFlagOrPanic("audit.enabled", "audit")
	bindFlagOrPanic("audit.options.file_path", "audit-file")
}

func bindFlagOrPanic(configKey, flagName string) {
	var flag *pflag.Flag
	if flag = rootCmd.PersistentFlags().Lookup(flagName); flag == nil {
		panic(fmt.Sprintf("unknown flag: %s", flagName))
	}
	if err := viper.BindPFlag(configKey, flag); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")

		viper.SetConfigType("yaml")
		viper.SetConfigName(".noteece-vault")
	}

	viper.SetEnvPrefix("NOTEECE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// No config file is fine; defaults and env vars cover everything.
	}
}

func setDefaults() {
	viper.SetDefault("vault.path", defaultStorePath())
	viper.SetDefault("vault.store_type", "filesystem")
	viper.SetDefault("vault.no_mlock", false)

	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.options.file_path", "")
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".noteece-vault"
	}
	return filepath.Join(home, ".noteece-vault")
}

func initializeService(cmd *cobra.Command, args []string) error {
	switch cmd.Name() {
	case "help", "completion", "__complete", "config", "view", "get", "set":
		return nil
	}

	path := viper.GetString("vault.path")
	storeType := persist.StoreType(viper.GetString("vault.store_type"))

	var err error
	switch storeType {
	case persist.StoreTypeFileSystem:
		vaultStore, err = persist.NewStore(persist.StoreConfig{
			Type:   storeType,
			Config: map[string]interface{}{"base_path": path},
		})
	case persist.StoreTypeBolt:
		vaultStore, err = persist.NewStore(persist.StoreConfig{
			Type:   storeType,
			Config: map[string]interface{}{"path": filepath.Join(path, "vault.db")},
		})
	default:
		return fmt.Errorf("unsupported store type: %s", storeType)
	}
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	auditLogger, err = createAuditLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create audit logger: %w", err)
	}

	opts := vault.DefaultOptions()
	if viper.GetBool("vault.no_mlock") {
		opts.LockMemory = false
	}

	vaultSvc, err = vault.New(opts, vaultStore, biometric.NewSystemGateway(""), auditLogger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault: %w", err)
	}

	return nil
}

func createAuditLogger(storePath string) (audit.Logger, error) {
	filePath := viper.GetString("audit.options.file_path")
	if filePath == "" {
		filePath = filepath.Join(storePath, "audit.log")
	}
	return audit.NewLogger(&audit.Config{
		Enabled: viper.GetBool("audit.enabled"),
		Type:    audit.FileAuditType,
		Options: map[string]interface{}{"file_path": filePath},
	})
}
