// Package device tracks the registered device roster and detects changes
// between CI runs by comparing content checksums of roster snapshots.
package device

// Device is a single registered device. Collectors are free to add fields,
// so the record is kept open-world: every key participates in the checksum.
type Device map[string]any

// ID returns the device identifier, or "" when absent.
func (d Device) ID() string {
	return d.stringField("id")
}

// Name returns the device display name, or "" when absent.
func (d Device) Name() string {
	return d.stringField("name")
}

// Class returns the device class (e.g. "iPhone"), or "" when absent.
func (d Device) Class() string {
	return d.stringField("device_class")
}

// UDID returns the device UDID, or "" when absent.
func (d Device) UDID() string {
	return d.stringField("udid")
}

func (d Device) stringField(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

// Snapshot is a point-in-time capture of the device roster. One is written
// per CI run by an external collector; the differ compares the previous
// run's copy against the current one.
type Snapshot struct {
	Devices     []Device `json:"devices"`
	Checksum    string   `json:"checksum"`
	LastUpdated string   `json:"last_updated"`
}
