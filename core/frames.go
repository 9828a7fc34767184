package core

import (
	"fmt"
)

// AttitudeSample is the spacecraft state at one instant: attitude quaternion
// and geocentric position (kilometres, sky frame).
type AttitudeSample struct {
	Time       float64
	Quaternion Quaternion
	Position   Vec3
}

// Rotation returns the sky->satellite rotation for the sample.
func (s AttitudeSample) Rotation() Rotation {
	return RotationFromQuaternion(s.Quaternion)
}

// ToSatelliteFrame rotates a sky-frame direction into the satellite frame.
func ToSatelliteFrame(dir Direction, att AttitudeSample) (Direction, error) {
	if dir.Frame != FrameSky {
		return Direction{}, fmt.Errorf("%w: to satellite frame wants %s, got %s", ErrFrameMismatch, FrameSky, dir.Frame)
	}
	return Direction{Frame: FrameSatellite, Vec: att.Rotation().Apply(dir.Vec)}, nil
}

// ToSkyFrame rotates a satellite-frame direction into the sky frame.
func ToSkyFrame(dir Direction, att AttitudeSample) (Direction, error) {
	if dir.Frame != FrameSatellite {
		return Direction{}, fmt.Errorf("%w: to sky frame wants %s, got %s", ErrFrameMismatch, FrameSatellite, dir.Frame)
	}
	return Direction{Frame: FrameSky, Vec: att.Rotation().ApplyTranspose(dir.Vec)}, nil
}

// IsOcculted reports whether the Earth blocks a direction given in either
// the sky or the satellite frame.
func IsOcculted(att AttitudeSample, dir Direction) (bool, error) {
	switch dir.Frame {
	case FrameSky:
		return occultedFrom(att.Position, dir.Vec), nil
	case FrameSatellite:
		sky, err := ToSkyFrame(dir, att)
		if err != nil {
			return false, err
		}
		return occultedFrom(att.Position, sky.Vec), nil
	default:
		return false, fmt.Errorf("%w: occultation needs sky or satellite frame, got %s", ErrFrameMismatch, dir.Frame)
	}
}

// EarthDirection returns the unit vector towards the Earth centre in the
// satellite frame.
func EarthDirection(att AttitudeSample) Direction {
	nadir := att.Position.Scale(-1).Unit()
	return Direction{Frame: FrameSatellite, Vec: att.Rotation().Apply(nadir)}
}

// OccultationMask evaluates IsOcculted for satellite-frame directions in
// bulk. Directions are unit vectors; mask[i] is true when dirs[i] is blocked.
func OccultationMask(att AttitudeSample, dirs []Vec3) []bool {
	rot := att.Rotation()
	half := EarthHalfAngle(att.Position)
	nadir := att.Position.Scale(-1)
	mask := make([]bool, len(dirs))
	for i, d := range dirs {
		mask[i] = rot.ApplyTranspose(d).AngleTo(nadir) <= half
	}
	return mask
}

func frameErr(want, got Frame) error {
	return fmt.Errorf("%w: want %s, got %s", ErrFrameMismatch, want, got)
}
