package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	vault "github.com/AmirrezaFarnamTaheri/noteece-vault"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long: `Create a new vault protected by a master password. The password must be at
least 8 characters and pass a strength check. Losing the password means losing
the vault; there is no recovery path.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	if vaultSvc.CheckVaultExists() {
		return fmt.Errorf("a vault already exists at this location")
	}

	password, err := resolvePasswordForInit()
	if err != nil {
		return err
	}

	if !vaultSvc.CreateVault(password) {
		return fmt.Errorf("vault creation failed: password must be at least %d characters and not easily guessable",
			vault.MinPasswordLength)
	}

	fmt.Printf("Vault created (space %s)\n", vaultSvc.SpaceID())
	fmt.Printf("Memory protection: %s\n", vaultSvc.MemoryProtection())
	return nil
}

func resolvePasswordForInit() (string, error) {
	// A password given by flag or env skips the confirmation prompt.
	if password := viper.GetString("vault.password"); password != "" {
		return password, nil
	}
	return promptSecretConfirmed("Master password: ")
}
