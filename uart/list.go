package uart

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"go.bug.st/serial"
)

// ErrDeviceNotFound is returned by GetPortInfo for paths that are not
// character devices.
var ErrDeviceNotFound = errors.New("uart: device not found")

var (
	devDir   = "/dev"
	sysTTY   = "/sys/class/tty"
	portName = []*regexp.Regexp{
		regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters, most cellular modules
		regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM modems
		regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
		regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
		regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
		regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
		regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
		regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
	}
)

// modemVendors maps USB vendor IDs of cellular module makers to names.
var modemVendors = map[string]string{
	"2c7c": "Quectel",
	"1199": "Sierra Wireless",
	"1bc7": "Telit",
	"1546": "u-blox",
	"1e0e": "SIMCom",
	"12d1": "Huawei",
	"19d2": "ZTE",
}

// ListPorts returns the serial devices a modem may be attached to. Outside
// Linux the list comes from go.bug.st/serial.
func ListPorts() ([]string, error) {
	if runtime.GOOS != "linux" {
		return serial.GetPortsList()
	}
	return listPorts(devDir)
}

func listPorts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		if !matchesPortName(name) {
			continue
		}
		fullPath := filepath.Join(dir, name)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

func matchesPortName(name string) bool {
	for _, re := range portName {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a serial device.
type PortInfo struct {
	Name         string
	Path         string
	Description  string
	VendorID     string
	ProductID    string
	Manufacturer string
	Product      string
	SerialNumber string
	// Interface is the USB interface number; cellular modules expose AT,
	// diagnostics and data on separate interfaces.
	Interface string
	// BusNumber and DeviceNumber locate the USB device for a reset.
	BusNumber    string
	DeviceNumber string
}

// Modem reports whether the vendor is a known cellular module maker.
func (i *PortInfo) Modem() bool {
	_, ok := modemVendors[i.VendorID]
	return ok
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}

	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info, filepath.Join(sysTTY, name, "device"))
	}
	return info, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// enrichUSBInfo reads USB descriptors from sysfs. dev is the tty's device
// link: the USB interface for ttyACM, the usb-serial port one level below it
// for ttyUSB. Device attributes live on the interface's parent.
func enrichUSBInfo(info *PortInfo, dev string) {
	iface, err := filepath.EvalSymlinks(dev)
	if err != nil {
		return
	}
	if readAttr(iface, "bInterfaceNumber") == "" {
		iface = filepath.Dir(iface)
	}
	info.Interface = readAttr(iface, "bInterfaceNumber")

	usb := filepath.Dir(iface)
	info.VendorID = readAttr(usb, "idVendor")
	info.ProductID = readAttr(usb, "idProduct")
	info.Manufacturer = readAttr(usb, "manufacturer")
	info.Product = readAttr(usb, "product")
	info.SerialNumber = readAttr(usb, "serial")
	info.BusNumber = readAttr(usb, "busnum")
	info.DeviceNumber = readAttr(usb, "devnum")

	if vendor, ok := modemVendors[info.VendorID]; ok {
		info.Description = vendor + " Cellular Modem"
	}
}

func readAttr(dir, name string) string {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
