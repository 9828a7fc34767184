package core

import (
	"math"
	"sync"
	"time"

	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// METEpoch is mission elapsed time zero, 2001-01-01T00:00:00 UTC. Leap
// seconds since the epoch are not applied.
var METEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// METToTime converts MET seconds to a UTC time.
func METToTime(met float64) time.Time {
	sec := math.Floor(met)
	nsec := (met - sec) * 1e9
	return METEpoch.Add(time.Duration(sec)*time.Second + time.Duration(nsec))
}

// TimeToMET converts a UTC time to MET seconds.
func TimeToMET(t time.Time) float64 {
	return t.Sub(METEpoch).Seconds()
}

// SunDirection returns the apparent geocentric Sun direction in the sky frame
// at the given MET.
func SunDirection(met float64) Direction {
	jde := julian.TimeToJD(METToTime(met))
	ra, dec := solar.ApparentEquatorial(jde)
	return DirectionFromAngles(FrameSky, ra.Rad()*180/math.Pi, dec.Rad()*180/math.Pi)
}

var (
	galOnce sync.Once
	galRot  Rotation
)

// GalacticRotation returns the rotation taking J2000 sky vectors to galactic
// vectors. The galactic frame is defined on B1950 equatorial coordinates, so
// the basis is precessed from J2000 first.
func GalacticRotation() Rotation {
	galOnce.Do(func() {
		// Rows of the sky->galactic matrix are the galactic axes in J2000.
		axes := [3][2]float64{{0, 0}, {90, 0}, {0, 90}}
		for i, a := range axes {
			v := skyFromGalacticAngles(a[0], a[1])
			galRot[i] = [3]float64{v.X, v.Y, v.Z}
		}
	})
	return galRot
}

func skyFromGalacticAngles(lDeg, bDeg float64) Vec3 {
	g := &coord.Galactic{
		Lon: unit.AngleFromDeg(lDeg),
		Lat: unit.AngleFromDeg(bDeg),
	}
	b1950 := new(coord.Equatorial).GalToEq(g)
	j2000 := precess.Position(b1950, new(coord.Equatorial), 1950, 2000, 0, 0)
	return DirectionFromAngles(FrameSky, j2000.RA.Rad()*180/math.Pi, j2000.Dec.Rad()*180/math.Pi).Vec
}

// SkyFromGalactic converts a galactic direction to the sky frame.
func SkyFromGalactic(dir Direction) (Direction, error) {
	if dir.Frame != FrameGalactic {
		return Direction{}, frameErr(FrameGalactic, dir.Frame)
	}
	return Direction{Frame: FrameSky, Vec: GalacticRotation().ApplyTranspose(dir.Vec)}, nil
}

// GalacticFromSky converts a sky direction to the galactic frame.
func GalacticFromSky(dir Direction) (Direction, error) {
	if dir.Frame != FrameSky {
		return Direction{}, frameErr(FrameSky, dir.Frame)
	}
	return Direction{Frame: FrameGalactic, Vec: GalacticRotation().Apply(dir.Vec)}, nil
}
