package model

import (
	"fmt"
	"sort"
)

// Detector identifies one scintillator and its mounting direction in the
// satellite frame (degrees).
type Detector struct {
	Name    string
	Azimuth float64
	Zenith  float64
}

// IsBGO reports whether the detector is one of the two BGO units.
func (d Detector) IsBGO() bool { return len(d.Name) > 0 && d.Name[0] == 'b' }

// Detectors is the catalogue of the 12 NaI and 2 BGO detectors.
var Detectors = map[string]Detector{
	"n0": {Name: "n0", Azimuth: 45.8899994, Zenith: 20.5799999},
	"n1": {Name: "n1", Azimuth: 45.1100006, Zenith: 45.3100014},
	"n2": {Name: "n2", Azimuth: 58.4399986, Zenith: 90.2099991},
	"n3": {Name: "n3", Azimuth: 314.869995, Zenith: 45.2400017},
	"n4": {Name: "n4", Azimuth: 303.149994, Zenith: 90.2699966},
	"n5": {Name: "n5", Azimuth: 3.34999990, Zenith: 89.7900009},
	"n6": {Name: "n6", Azimuth: 224.929993, Zenith: 20.4300003},
	"n7": {Name: "n7", Azimuth: 224.619995, Zenith: 46.1800003},
	"n8": {Name: "n8", Azimuth: 236.610001, Zenith: 89.9700012},
	"n9": {Name: "n9", Azimuth: 135.190002, Zenith: 45.5499992},
	"na": {Name: "na", Azimuth: 123.730003, Zenith: 90.4199982},
	"nb": {Name: "nb", Azimuth: 183.740005, Zenith: 90.3199997},
	"b0": {Name: "b0", Azimuth: 0.0, Zenith: 90.0},
	"b1": {Name: "b1", Azimuth: 180.0, Zenith: 90.0},
}

// LookupDetector returns the catalogue entry for name.
func LookupDetector(name string) (Detector, error) {
	d, ok := Detectors[name]
	if !ok {
		return Detector{}, fmt.Errorf("%w: %q", ErrUnknownDetector, name)
	}
	return d, nil
}

// DetectorNames returns the catalogue names in sorted order.
func DetectorNames() []string {
	names := make([]string, 0, len(Detectors))
	for n := range Detectors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
