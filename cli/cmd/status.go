package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault status",
	Long:  "Display vault state, identifiers, storage backend and memory protection level.",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("Vault Status")
	fmt.Println("============")

	fmt.Printf("State: %s\n", vaultSvc.State())
	if spaceID := vaultSvc.SpaceID(); spaceID != "" {
		fmt.Printf("Space: %s\n", spaceID)
	}
	if deviceID := vaultSvc.DeviceID(); deviceID != "" {
		fmt.Printf("Device: %s\n", deviceID)
	}

	fmt.Printf("Storage: %s\n", vaultStore.GetType())
	fmt.Printf("Memory Protection: %s\n", vaultSvc.MemoryProtection())

	if vaultSvc.IsBiometricAvailable() {
		fmt.Printf("Biometric: available, enabled=%v\n", vaultSvc.IsBiometricEnabled())
	} else {
		fmt.Println("Biometric: unavailable")
	}

	return nil
}
