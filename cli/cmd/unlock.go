package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Verify the vault opens with the master password",
	Long: `Unlock the vault with the master password and report the result. The key is
dropped again when the command exits; this verifies the password and the
integrity of the stored key material.`,
	RunE: runUnlock,
}

var unlockBiometricFlag bool

func init() {
	unlockCmd.Flags().BoolVar(&unlockBiometricFlag, "biometric", false, "unlock through the platform credential store")
	rootCmd.AddCommand(unlockCmd)
}

func runUnlock(cmd *cobra.Command, args []string) error {
	if !vaultSvc.CheckVaultExists() {
		return fmt.Errorf("no vault exists; run 'noteece-vault init' first")
	}

	if unlockBiometricFlag {
		if !vaultSvc.UnlockWithBiometric() {
			return fmt.Errorf("biometric unlock failed")
		}
	} else {
		password, err := resolvePassword("Master password: ")
		if err != nil {
			return err
		}
		if !vaultSvc.UnlockVault(password) {
			return fmt.Errorf("unlock failed: wrong password or corrupted vault")
		}
	}

	fmt.Printf("Vault unlocked (space %s, device %s)\n", vaultSvc.SpaceID(), vaultSvc.DeviceID())
	return nil
}
