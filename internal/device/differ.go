package device

import (
	"sort"

	"github.com/rs/zerolog"
)

// Diff reports the id-level difference between two rosters. It is
// diagnostic output only and never affects the changed/unchanged verdict.
type Diff struct {
	Added   []Device
	Removed []Device
}

// Differ compares roster snapshots by checksum.
type Differ struct {
	logger zerolog.Logger
}

// NewDiffer constructs a Differ.
func NewDiffer(logger zerolog.Logger) *Differ {
	return &Differ{logger: logger}
}

// Compare answers whether the roster changed between the cached and the
// current snapshot. Missing snapshots on either side force changed=true:
// a first run must rebuild everything, and a collector failure upstream
// must rebuild rather than risk stale provisioning.
func (d *Differ) Compare(cached, current *Snapshot) (bool, *Snapshot, *Snapshot) {
	if cached == nil {
		d.logger.Info().Msg("no cached device list found, first run, will rebuild all")
		return true, nil, current
	}
	if current == nil {
		d.logger.Error().Msg("no current device list found, will rebuild all")
		return true, cached, nil
	}

	cachedChecksum := cached.Checksum
	currentChecksum := current.Checksum
	if currentChecksum == "" {
		computed, err := Checksum(current.Devices)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to compute current checksum, will rebuild all")
			return true, cached, current
		}
		currentChecksum = computed
		d.logger.Info().Str("checksum", currentChecksum).Msg("calculated current checksum")
	}

	if cachedChecksum != currentChecksum {
		d.logger.Info().
			Str("cached", cachedChecksum).
			Str("current", currentChecksum).
			Msg("device list changed")
		d.logDiff(DiffIDs(cached, current))
		return true, cached, current
	}

	d.logger.Info().Msg("device list unchanged")
	return false, cached, current
}

// DiffIDs computes the symmetric difference of device id sets.
func DiffIDs(cached, current *Snapshot) Diff {
	cachedByID := indexByID(cached.Devices)
	currentByID := indexByID(current.Devices)

	var diff Diff
	for id, dev := range currentByID {
		if _, ok := cachedByID[id]; !ok {
			diff.Added = append(diff.Added, dev)
		}
	}
	for id, dev := range cachedByID {
		if _, ok := currentByID[id]; !ok {
			diff.Removed = append(diff.Removed, dev)
		}
	}
	sortByID(diff.Added)
	sortByID(diff.Removed)
	return diff
}

func (d *Differ) logDiff(diff Diff) {
	for _, dev := range diff.Added {
		d.logger.Info().
			Str("name", dev.Name()).
			Str("device_class", dev.Class()).
			Msg("device added")
	}
	for _, dev := range diff.Removed {
		d.logger.Info().
			Str("name", dev.Name()).
			Str("device_class", dev.Class()).
			Msg("device removed")
	}
}

func indexByID(devices []Device) map[string]Device {
	byID := make(map[string]Device, len(devices))
	for _, dev := range devices {
		byID[dev.ID()] = dev
	}
	return byID
}

func sortByID(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID() < devices[j].ID()
	})
}
