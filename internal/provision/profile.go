// Package provision inspects Apple provisioning profiles so a run can
// flag signing problems (expired profiles, unprovisioned devices) before
// the toolchain fails with something far less readable.
package provision

import (
	"fmt"
	"time"

	"go.mozilla.org/pkcs7"
	"howett.net/plist"

	"github.com/ipafleet/ipa-sentinel/internal/device"
)

// Profile is the plist payload of a .mobileprovision file.
type Profile struct {
	Name                 string    `plist:"Name"`
	UUID                 string    `plist:"UUID"`
	TeamName             string    `plist:"TeamName"`
	Platform             []string  `plist:"Platform"`
	CreationDate         time.Time `plist:"CreationDate"`
	ExpirationDate       time.Time `plist:"ExpirationDate"`
	ProvisionedDevices   []string  `plist:"ProvisionedDevices"`
	ProvisionsAllDevices bool      `plist:"ProvisionsAllDevices"`
}

// Parse reads a .mobileprovision blob: a CMS (PKCS#7) signed container
// whose content is a plist.
func Parse(data []byte) (*Profile, error) {
	p7, err := pkcs7.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse PKCS#7 container: %w", err)
	}

	var profile Profile
	if _, err := plist.Unmarshal(p7.Content, &profile); err != nil {
		return nil, fmt.Errorf("parse provisioning profile plist: %w", err)
	}
	return &profile, nil
}

// IsExpired reports whether the profile has passed its expiration date.
func (p *Profile) IsExpired(now time.Time) bool {
	return !p.ExpirationDate.IsZero() && now.After(p.ExpirationDate)
}

// Covers reports whether the profile provisions the given device UDID.
// Enterprise/distribution profiles provision all devices.
func (p *Profile) Covers(udid string) bool {
	if p.ProvisionsAllDevices {
		return true
	}
	for _, provisioned := range p.ProvisionedDevices {
		if provisioned == udid {
			return true
		}
	}
	return false
}

// UncoveredDevices returns the roster devices whose UDID the profile
// does not provision. Devices without a UDID are skipped: there is
// nothing to match against.
func (p *Profile) UncoveredDevices(devices []device.Device) []device.Device {
	if p.ProvisionsAllDevices {
		return nil
	}
	var uncovered []device.Device
	for _, dev := range devices {
		udid := dev.UDID()
		if udid == "" {
			continue
		}
		if !p.Covers(udid) {
			uncovered = append(uncovered, dev)
		}
	}
	return uncovered
}
