package response

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
	"gonum.org/v1/gonum/mat"

	"github.com/signalsfoundry/gbm-background/model"
)

// ErrBadSnapshot is returned when snapshot bytes cannot be decoded.
var ErrBadSnapshot = errors.New("malformed response snapshot")

// Snapshot field numbers. The layout is the protobuf message
//
//	message GridResponses {
//	  string detector = 1;
//	  uint32 grid_points = 2;
//	  repeated double in_edges = 3 [packed = true];
//	  repeated double out_edges = 4 [packed = true];
//	  repeated Matrix matrices = 5;
//	}
//	message Matrix { repeated double values = 1 [packed = true]; }
const (
	fieldDetector   protowire.Number = 1
	fieldGridPoints protowire.Number = 2
	fieldInEdges    protowire.Number = 3
	fieldOutEdges   protowire.Number = 4
	fieldMatrices   protowire.Number = 5
	fieldValues     protowire.Number = 1
)

// MarshalSnapshot encodes grid responses in protobuf wire format.
func MarshalSnapshot(g *GridResponses) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDetector, protowire.BytesType)
	b = protowire.AppendString(b, g.Detector)
	b = protowire.AppendTag(b, fieldGridPoints, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(g.Grid.Len()))
	b = appendPackedDoubles(b, fieldInEdges, g.In.Edges())
	b = appendPackedDoubles(b, fieldOutEdges, g.Out.Edges())
	for i := 0; i < g.Len(); i++ {
		inner := appendPackedDoubles(nil, fieldValues, denseValues(g.Matrix(i)))
		b = protowire.AppendTag(b, fieldMatrices, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

// denseValues flattens m row-major regardless of its stride.
func denseValues(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}

func appendPackedDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	payload := make([]byte, 0, 8*len(vals))
	for _, v := range vals {
		payload = protowire.AppendFixed64(payload, math.Float64bits(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func consumePackedDoubles(payload []byte) ([]float64, error) {
	if len(payload)%8 != 0 {
		return nil, fmt.Errorf("%w: packed doubles of %d bytes", ErrBadSnapshot, len(payload))
	}
	out := make([]float64, 0, len(payload)/8)
	for len(payload) > 0 {
		v, n := protowire.ConsumeFixed64(payload)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, protowire.ParseError(n))
		}
		out = append(out, math.Float64frombits(v))
		payload = payload[n:]
	}
	return out, nil
}

// UnmarshalSnapshot decodes grid responses written by MarshalSnapshot. The
// direction grid is regenerated from its size. Unknown fields are skipped.
func UnmarshalSnapshot(b []byte) (*GridResponses, error) {
	var (
		detector    string
		points      uint64
		inEdges     []float64
		outEdges    []float64
		rawMatrices [][]float64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldDetector && typ == protowire.BytesType:
			detector, n = protowire.ConsumeString(b)
		case num == fieldGridPoints && typ == protowire.VarintType:
			points, n = protowire.ConsumeVarint(b)
		case (num == fieldInEdges || num == fieldOutEdges || num == fieldMatrices) && typ == protowire.BytesType:
			var payload []byte
			payload, n = protowire.ConsumeBytes(b)
			if n < 0 {
				break
			}
			if num == fieldMatrices {
				vals, err := matrixValues(payload)
				if err != nil {
					return nil, err
				}
				rawMatrices = append(rawMatrices, vals)
				break
			}
			vals, err := consumePackedDoubles(payload)
			if err != nil {
				return nil, err
			}
			if num == fieldInEdges {
				inEdges = vals
			} else {
				outEdges = vals
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: %v", ErrBadSnapshot, num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	in, err := model.NewEnergyGrid(inEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: incoming grid: %v", ErrBadSnapshot, err)
	}
	out, err := model.NewEnergyGrid(outEdges)
	if err != nil {
		return nil, fmt.Errorf("%w: detected grid: %v", ErrBadSnapshot, err)
	}
	if points > math.MaxInt32 || points != uint64(len(rawMatrices)) {
		return nil, fmt.Errorf("%w: %d grid points for %d matrices", ErrBadSnapshot, points, len(rawMatrices))
	}
	grid, err := GenerateDirectionGrid(int(points))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}
	matrices := make([]*mat.Dense, len(rawMatrices))
	for i, vals := range rawMatrices {
		if len(vals) != in.NumBins()*out.NumBins() {
			return nil, fmt.Errorf("%w: matrix %d has %d values, want %d", ErrBadSnapshot, i, len(vals), in.NumBins()*out.NumBins())
		}
		matrices[i] = mat.NewDense(in.NumBins(), out.NumBins(), vals)
	}
	return NewGridResponses(grid, detector, in, out, matrices)
}

func matrixValues(msg []byte) ([]float64, error) {
	var vals []float64
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, protowire.ParseError(n))
		}
		msg = msg[n:]
		if num == fieldValues && typ == protowire.BytesType {
			payload, m := protowire.ConsumeBytes(msg)
			if m < 0 {
				return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, protowire.ParseError(m))
			}
			v, err := consumePackedDoubles(payload)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v...)
			msg = msg[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, msg)
		if m < 0 {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, protowire.ParseError(m))
		}
		msg = msg[m:]
	}
	return vals, nil
}
