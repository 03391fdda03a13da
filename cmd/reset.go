/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/allbin/go-modemlink/uart"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset [port]",
	Short: "USB-reset a hung modem and wait for it to return",
	Long: `Perform a USB-level reset on the modem behind a serial port. This can
recover modems that stop answering without power cycling them.

The modem re-enumerates after the reset and its port path may change (e.g.
/dev/ttyUSB2 might become /dev/ttyUSB6). modemlink finds the port again by
USB serial number and interface and prints the new path.

Requirements:
- usbreset utility must be installed (from usbutils package)
- Root/sudo permissions required for USB operations

Examples:
  sudo modemlink reset /dev/ttyUSB2
  sudo modemlink reset --serial 0123456789 --interface 02`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both port path and --serial flag")
		}
		return cobra.MaximumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !uart.IsUSBResetAvailable() {
			return fmt.Errorf("%w; install with: sudo apt-get install usbutils", uart.ErrUSBResetNotAvailable)
		}

		serialFlag, _ := cmd.Flags().GetString("serial")
		iface, _ := cmd.Flags().GetString("interface")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		deviceArg(args)
		portPath := viper.GetString("device")
		if serialFlag != "" {
			info, err := uart.FindBySerial(serialFlag, iface)
			if err != nil {
				return err
			}
			portPath = info.Path
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		fmt.Printf("Resetting modem behind %s\n", portPath)
		newPath, err := uart.ResetModem(ctx, portPath)
		if err != nil {
			if errors.Is(err, uart.ErrUSBInfoNotAvailable) {
				return fmt.Errorf("%s does not appear to be a USB device: %w", portPath, err)
			}
			return err
		}

		fmt.Println("Modem reset successfully")
		if newPath != portPath {
			fmt.Printf("Port moved: %s -> %s\n", portPath, newPath)
		} else {
			fmt.Printf("Port is back at %s\n", newPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Reset device by USB serial number")
	resetCmd.Flags().String("interface", "", "With --serial, the USB interface of the AT port (e.g. 02)")
	resetCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the modem to re-enumerate")
}
