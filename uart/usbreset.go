package uart

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/golang/glog"
)

var (
	// ErrUSBInfoNotAvailable is returned when a port has no USB bus and
	// device number, usually because it is not a USB device.
	ErrUSBInfoNotAvailable = errors.New("uart: usb bus/device numbers not available")

	// ErrUSBResetNotAvailable is returned when the usbreset utility is not
	// installed.
	ErrUSBResetNotAvailable = errors.New("uart: usbreset utility not found")
)

// reenumeratePoll is how often ResetModem looks for the device to return.
const reenumeratePoll = 100 * time.Millisecond

// runUSBReset is replaced in tests.
var runUSBReset = func(ctx context.Context, usbPath string) ([]byte, error) {
	return exec.CommandContext(ctx, "usbreset", usbPath).CombinedOutput()
}

// IsUSBResetAvailable checks if usbreset utility is available in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}

// usbPath formats the BBB/DDD argument usbreset expects.
func usbPath(info *PortInfo) (string, error) {
	bus, err := strconv.Atoi(info.BusNumber)
	if err != nil {
		return "", ErrUSBInfoNotAvailable
	}
	dev, err := strconv.Atoi(info.DeviceNumber)
	if err != nil {
		return "", ErrUSBInfoNotAvailable
	}
	return fmt.Sprintf("%03d/%03d", bus, dev), nil
}

// FindBySerial returns the first port whose USB serial number matches.
// Modems expose several ports with the same serial; pass iface to pick one,
// or "" for any.
func FindBySerial(serial, iface string) (*PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	for _, path := range ports {
		info, err := GetPortInfo(path)
		if err != nil {
			continue
		}
		if info.SerialNumber == serial && (iface == "" || info.Interface == iface) {
			return info, nil
		}
	}
	return nil, fmt.Errorf("%w: no port with serial %s", ErrDeviceNotFound, serial)
}

// ResetModem performs a USB-level reset of the modem behind portPath and
// waits until it has re-enumerated, returning the port's new path. The
// path may change across the reset; the port is found again by serial
// number and interface.
func ResetModem(ctx context.Context, portPath string) (string, error) {
	info, err := GetPortInfo(portPath)
	if err != nil {
		return "", fmt.Errorf("failed to get port info: %w", err)
	}

	target, err := usbPath(info)
	if err != nil {
		return "", err
	}
	if info.SerialNumber == "" {
		return "", ErrUSBInfoNotAvailable
	}
	if !IsUSBResetAvailable() {
		return "", ErrUSBResetNotAvailable
	}

	glog.V(2).Infof("uart: resetting %s (usb %s, serial %s)", portPath, target, info.SerialNumber)
	if output, err := runUSBReset(ctx, target); err != nil {
		return "", fmt.Errorf("usbreset failed: %w (output: %s)", err, output)
	}

	return waitForSerial(ctx, info.SerialNumber, info.Interface)
}

// waitForSerial polls until a port with serial and iface shows up or ctx ends.
func waitForSerial(ctx context.Context, serial, iface string) (string, error) {
	ticker := time.NewTicker(reenumeratePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("waiting for %s to re-enumerate: %w", serial, ctx.Err())
		case <-ticker.C:
		}
		if info, err := FindBySerial(serial, iface); err == nil {
			return info.Path, nil
		}
	}
}
