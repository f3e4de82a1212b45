package app

import (
	"fmt"
	"os"

	"github.com/emmett/veris/internal/audio"
)

// DeviceManager handles audio device selection and listing
type DeviceManager struct{}

// NewDeviceManager creates a new DeviceManager instance
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{}
}

// ListDevices lists all available audio input devices
func (dm *DeviceManager) ListDevices() error {
	devices, err := audio.ListDevices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list devices: %v\n", err)
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No audio capture devices found.")
		return audio.ErrDeviceUnavailable
	}

	fmt.Printf("Found %d capture device(s):\n\n", len(devices))
	for i, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " [DEFAULT]"
		}
		fmt.Printf("%d. %s%s\n", i+1, device.Name, marker)
		fmt.Printf("   ID: %s\n\n", device.ID)
	}

	fmt.Println("To record from a specific device, run:")
	fmt.Printf("  veris --device \"%s\"\n", devices[0].Name)

	return nil
}

// SelectDevice selects an audio device by name/ID, or returns the default
func (dm *DeviceManager) SelectDevice(deviceName string) (*audio.DeviceInfo, error) {
	if deviceName == "" {
		defaultDevice, err := audio.GetDefaultDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default device: %w", err)
		}
		return defaultDevice, nil
	}

	device, err := audio.FindDevice(deviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Device %q not found\n", deviceName)
		fmt.Fprintln(os.Stderr, "Use --list-devices to see available devices")
		return nil, err
	}
	return device, nil
}
