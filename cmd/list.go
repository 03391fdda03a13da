/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"
	"github.com/spf13/cobra"

	"github.com/allbin/go-modemlink/internal/tui/colors"
	"github.com/allbin/go-modemlink/uart"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available serial ports",
	Long: `List all available serial ports on the system.

This command scans for communication-capable serial devices including:
- USB serial adapters (ttyUSB*), where most modems expose their AT port
- USB CDC/ACM devices (ttyACM*)
- Standard serial ports (ttyS*)
- ARM/Raspberry Pi ports (ttyAMA*)

Use --filter modem to show only ports of known cellular module vendors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := uart.ListPorts()
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}

		filterType, _ := cmd.Flags().GetString("filter")
		tableFormat, _ := cmd.Flags().GetBool("table")

		infos := filterPorts(ports, filterType)
		if len(infos) == 0 {
			if filterType != "" {
				fmt.Printf("No serial ports found matching filter: %s\n", filterType)
			} else {
				fmt.Println("No serial ports found")
			}
			return nil
		}

		if tableFormat {
			fmt.Printf("Found %d serial port(s):\n\n", len(infos))
			fmt.Println(renderTable(infos))
		} else {
			for _, info := range infos {
				fmt.Println(info.Path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("filter", "F", "", "Filter by port type: usb, modem, standard, arm, all")
	listCmd.Flags().BoolP("table", "t", false, "Display output in a styled table format")
}

// filterPorts returns the info of each port matching filterType. Ports whose
// info cannot be read are kept unless a filter is set.
func filterPorts(ports []string, filterType string) []*uart.PortInfo {
	filterType = strings.ToLower(filterType)

	var filtered []*uart.PortInfo
	for _, port := range ports {
		info, err := uart.GetPortInfo(port)
		if err != nil {
			if filterType == "" || filterType == "all" {
				filtered = append(filtered, &uart.PortInfo{Path: port, Name: port, Description: fmt.Sprintf("Error: %v", err)})
			}
			continue
		}
		if matchesFilter(info, filterType) {
			filtered = append(filtered, info)
		}
	}
	return filtered
}

func matchesFilter(info *uart.PortInfo, filterType string) bool {
	name := strings.ToLower(info.Name)
	switch filterType {
	case "", "all":
		return true
	case "usb":
		return strings.HasPrefix(name, "ttyusb") || strings.HasPrefix(name, "ttyacm")
	case "modem":
		return info.Modem()
	case "standard":
		return strings.HasPrefix(name, "ttys")
	case "arm":
		return strings.HasPrefix(name, "ttyama")
	default:
		return false
	}
}

const (
	colPort  = "port"
	colType  = "type"
	colIface = "iface"
	colUSB   = "usb"
	colDesc  = "desc"
)

// renderTable renders the port list as a static bubble-table.
func renderTable(infos []*uart.PortInfo) string {
	columns := []table.Column{
		table.NewColumn(colPort, "Port", 15),
		table.NewColumn(colType, "Type", 16),
		table.NewColumn(colIface, "If", 4),
		table.NewColumn(colUSB, "USB ID", 11),
		table.NewColumn(colDesc, "Description", 30),
	}

	rows := make([]table.Row, 0, len(infos))
	for _, info := range infos {
		usbID := ""
		if info.VendorID != "" {
			usbID = info.VendorID + ":" + info.ProductID
		}
		row := table.NewRow(table.RowData{
			colPort:  info.Name,
			colType:  getPortType(info.Name),
			colIface: info.Interface,
			colUSB:   usbID,
			colDesc:  info.Description,
		})
		if info.Modem() {
			row = row.WithStyle(lipgloss.NewStyle().Foreground(colors.Green))
		}
		rows = append(rows, row)
	}

	return table.New(columns).
		WithRows(rows).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		WithBaseStyle(lipgloss.NewStyle().Align(lipgloss.Left)).
		View()
}

// getPortType returns a more specific type classification for the port
func getPortType(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.HasPrefix(name, "ttyusb"):
		return "USB Serial"
	case strings.HasPrefix(name, "ttyacm"):
		return "USB CDC/ACM"
	case strings.HasPrefix(name, "ttyama"):
		return "ARM Serial"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial"
	case strings.HasPrefix(name, "ttys"):
		return "Standard Serial"
	default:
		return "Serial Port"
	}
}
