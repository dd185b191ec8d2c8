package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var biometricCmd = &cobra.Command{
	Use:   "biometric",
	Short: "Manage biometric unlock",
	Long:  "Enable or disable unlocking through the platform credential store.",
}

var biometricEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable biometric unlock",
	Long: `Store the vault's data key in the platform credential store so the vault can
be unlocked behind a biometric prompt. Requires the master password; an
unlocked session is not enough.`,
	RunE: runBiometricEnable,
}

var biometricDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable biometric unlock",
	RunE:  runBiometricDisable,
}

func init() {
	biometricCmd.AddCommand(biometricEnableCmd)
	biometricCmd.AddCommand(biometricDisableCmd)
	rootCmd.AddCommand(biometricCmd)
}

func runBiometricEnable(cmd *cobra.Command, args []string) error {
	if !vaultSvc.IsBiometricAvailable() {
		return fmt.Errorf("no usable platform credential store on this device")
	}

	password, err := resolvePassword("Master password: ")
	if err != nil {
		return err
	}

	if !vaultSvc.EnableBiometric(password) {
		return fmt.Errorf("enable failed: wrong password or credential store error")
	}

	fmt.Println("Biometric unlock enabled")
	return nil
}

func runBiometricDisable(cmd *cobra.Command, args []string) error {
	if !vaultSvc.DisableBiometric() {
		return fmt.Errorf("disable failed")
	}
	fmt.Println("Biometric unlock disabled")
	return nil
}
