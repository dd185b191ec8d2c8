package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export the vault for transfer to another device",
	Long: `Write an encrypted export of the vault metadata to a file. The export is
sealed under a transfer passphrase of your choosing; the restored vault still
opens with its original master password.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore a vault from an export file",
	Long: `Restore a previously exported vault into an empty store. Refuses to
overwrite an existing vault.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	if !vaultSvc.CheckVaultExists() {
		return fmt.Errorf("no vault to export")
	}

	passphrase, err := promptSecretConfirmed("Transfer passphrase: ")
	if err != nil {
		return err
	}

	data, err := vaultSvc.Export(passphrase)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if err = os.WriteFile(args[0], data, 0600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	fmt.Printf("Vault exported to %s\n", args[0])
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read export file: %w", err)
	}

	passphrase, err := promptSecret("Transfer passphrase: ")
	if err != nil {
		return err
	}

	if err = vaultSvc.Import(data, passphrase); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Printf("Vault imported (space %s); unlock with the original master password\n", vaultSvc.SpaceID())
	return nil
}
