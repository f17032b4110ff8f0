// Package telemetry defines the per-tick vehicle snapshot shared by the recorder, the relay
// and the replay tooling.
package telemetry

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMalformedFrame is returned when a payload cannot be decoded into a Frame.
var ErrMalformedFrame = errors.New("telemetry: malformed frame")

// Frame captures the vehicle after one fixed step.
type Frame struct {
	VehicleID    string
	Tick         uint64
	SimulatedMs  int64
	Position     mgl64.Vec3
	Velocity     mgl64.Vec3
	Rotation     mgl64.Quat
	BodyRotation mgl64.Quat
	Grounded     bool
	Distance     float64
	Normal       mgl64.Vec3
	Hover        mgl64.Vec3
	Speed        float64
	BoostGauge   float64
	BoostPower   float64
}

// Struct converts the frame into its protobuf representation.
func (f Frame) Struct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"vehicle_id":    f.VehicleID,
		"tick":          float64(f.Tick),
		"simulated_ms":  float64(f.SimulatedMs),
		"position":      vec(f.Position),
		"velocity":      vec(f.Velocity),
		"rotation":      quat(f.Rotation),
		"body_rotation": quat(f.BodyRotation),
		"grounded":      f.Grounded,
		"distance":      f.Distance,
		"normal":        vec(f.Normal),
		"hover":         vec(f.Hover),
		"speed":         f.Speed,
		"boost_gauge":   f.BoostGauge,
		"boost_power":   f.BoostPower,
	})
}

// Encode marshals the frame as a binary protobuf Struct.
func (f Frame) Encode() ([]byte, error) {
	message, err := f.Struct()
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	return proto.Marshal(message)
}

// JSON marshals the frame with the protobuf JSON mapping used by the relay.
func (f Frame) JSON() ([]byte, error) {
	message, err := f.Struct()
	if err != nil {
		return nil, fmt.Errorf("encode frame %d: %w", f.Tick, err)
	}
	return protojson.Marshal(message)
}

// Decode parses a payload produced by Encode.
func Decode(payload []byte) (Frame, error) {
	var message structpb.Struct
	if err := proto.Unmarshal(payload, &message); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return FromStruct(&message)
}

// DecodeJSON parses a payload produced by JSON.
func DecodeJSON(payload []byte) (Frame, error) {
	var message structpb.Struct
	if err := protojson.Unmarshal(payload, &message); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return FromStruct(&message)
}

// FromStruct rebuilds a frame from its protobuf representation.
func FromStruct(message *structpb.Struct) (Frame, error) {
	if message == nil {
		return Frame{}, fmt.Errorf("%w: empty message", ErrMalformedFrame)
	}
	fields := message.GetFields()
	d := decoder{fields: fields}
	frame := Frame{
		VehicleID:    fields["vehicle_id"].GetStringValue(),
		Tick:         uint64(d.number("tick")),
		SimulatedMs:  int64(d.number("simulated_ms")),
		Position:     d.vec("position"),
		Velocity:     d.vec("velocity"),
		Rotation:     d.quat("rotation"),
		BodyRotation: d.quat("body_rotation"),
		Grounded:     fields["grounded"].GetBoolValue(),
		Distance:     d.number("distance"),
		Normal:       d.vec("normal"),
		Hover:        d.vec("hover"),
		Speed:        d.number("speed"),
		BoostGauge:   d.number("boost_gauge"),
		BoostPower:   d.number("boost_power"),
	}
	if d.err != nil {
		return Frame{}, d.err
	}
	return frame, nil
}

func vec(v mgl64.Vec3) []any { return []any{v[0], v[1], v[2]} }

func quat(q mgl64.Quat) []any { return []any{q.W, q.V[0], q.V[1], q.V[2]} }

// decoder remembers the first missing or mistyped field.
type decoder struct {
	fields map[string]*structpb.Value
	err    error
}

func (d *decoder) fail(key, problem string) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s %s", ErrMalformedFrame, key, problem)
	}
}

func (d *decoder) number(key string) float64 {
	value, ok := d.fields[key]
	if !ok {
		d.fail(key, "missing")
		return 0
	}
	if _, ok := value.GetKind().(*structpb.Value_NumberValue); !ok {
		d.fail(key, "must be a number")
		return 0
	}
	return value.GetNumberValue()
}

func (d *decoder) list(key string, size int) []float64 {
	values := d.fields[key].GetListValue().GetValues()
	if len(values) != size {
		d.fail(key, fmt.Sprintf("must hold %d numbers", size))
		return make([]float64, size)
	}
	out := make([]float64, size)
	for i, value := range values {
		out[i] = value.GetNumberValue()
	}
	return out
}

func (d *decoder) vec(key string) mgl64.Vec3 {
	values := d.list(key, 3)
	return mgl64.Vec3{values[0], values[1], values[2]}
}

func (d *decoder) quat(key string) mgl64.Quat {
	values := d.list(key, 4)
	return mgl64.Quat{W: values[0], V: mgl64.Vec3{values[1], values[2], values[3]}}
}
