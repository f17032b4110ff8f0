// Package vehicle turns pilot input, ground samples and gravity into the force, torque and
// orientation commands that keep a hovercar on its track.
package vehicle

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/metric"

	"hovercar/core/internal/boost"
	"hovercar/core/internal/gravity"
	"hovercar/core/internal/input"
	"hovercar/core/internal/logging"
	"hovercar/core/internal/physics"
	"hovercar/core/internal/pid"
	"hovercar/core/internal/sensor"
)

// ErrInvalidFrame is returned when a tick produced a non-finite command and was skipped.
var ErrInvalidFrame = errors.New("vehicle: invalid frame")

// minWallLift is the smallest vertical impulse share treated as a pop off a wall.
const minWallLift = 1e-9

// Option customises controller construction.
type Option func(*Controller)

// WithLogger injects the logger used for skipped frame warnings.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithID labels the controller in logs and metrics.
func WithID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.id = id
		}
	}
}

// WithMeterProvider publishes the controller counters through provider instead of the
// global meter provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Controller) {
		if provider != nil {
			c.meters = provider
		}
	}
}

// Controller drives one hovercar body. It is not safe for concurrent use; every call is
// expected from the simulation goroutine.
type Controller struct {
	cfg    Config
	id     string
	body   physics.Body
	logger *logging.Logger
	meters metric.MeterProvider
	inst   *instruments

	pid     *pid.Controller
	reserve *boost.Reserve
	sensor  *sensor.GroundSensor
	gravity *gravity.Aggregator

	tick          uint64
	skipped       uint64
	grounded      bool
	reading       sensor.Reading
	alignment     mgl64.Quat
	bodyRotation  mgl64.Quat
	speed         float64
	speedFraction float64
	rudder        float64
}

// New validates the tuning and wires the controller's PID, reserve, ground sensor and
// gravity aggregator to the body.
func New(cfg Config, body physics.Body, caster physics.Caster, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if body == nil || caster == nil {
		return nil, fmt.Errorf("%w: body and caster are required", ErrInvalidConfig)
	}
	ctrl := &Controller{cfg: cfg, id: "hovercar", body: body}
	for _, opt := range opts {
		if opt != nil {
			opt(ctrl)
		}
	}
	if ctrl.logger == nil {
		ctrl.logger = logging.L()
	}
	ctrl.logger = ctrl.logger.With(logging.String("vehicle_id", ctrl.id))

	//1.- Build the owned collaborators; their configurations were validated above.
	var err error
	if ctrl.pid, err = pid.New(cfg.PID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if ctrl.reserve, err = boost.New(cfg.Boost); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	ctrl.gravity = gravity.NewAggregator(body)
	if ctrl.sensor, err = sensor.New(cfg.Sensor, body, caster, ctrl.gravity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if ctrl.inst, err = newInstruments(ctrl.meters, ctrl.id); err != nil {
		return nil, err
	}

	//2.- Seed the transient state from the body's spawn pose.
	ctrl.alignment = mgl64.QuatIdent()
	if rotation := body.Rotation(); physics.FiniteQuat(rotation) && rotation.Len() > 0 {
		ctrl.alignment = rotation.Normalize()
	}
	ctrl.bodyRotation = ctrl.alignment
	ctrl.reading = sensor.Reading{Normal: physics.WorldUp}
	return ctrl, nil
}

// Tick plans one fixed step from the pilot input and commits it to the body. A frame that
// would push a non-finite value into the body is discarded whole.
func (c *Controller) Tick(in input.Snapshot) (Command, error) {
	dt := c.cfg.Step
	c.tick++

	//1.- Clamp the pilot input and remember the controller memory for rollback.
	in = in.Sanitize()
	pidState := c.pid.Snapshot()
	reserveState := c.reserve.Snapshot()

	//2.- Update the boost gauge from the held button.
	c.reserve.Update(in.Boosting, dt)

	//3.- Sample the ground and the motion state before anything re-orients the body.
	grounded, reading := c.sensor.Sense(dt)
	velocity := c.body.Velocity()
	speed := velocity.Dot(c.body.Rotation().Rotate(physics.Forward))
	speedFraction := mgl64.Clamp(velocity.Len()/c.cfg.TerminalVelocity, 0, 1)
	cmd := Command{
		Tick:          c.tick,
		Input:         in,
		Grounded:      grounded,
		Reading:       reading,
		Speed:         speed,
		SpeedFraction: speedFraction,
	}

	//4.- Hover toward the target height on the ground, fall hard against the normal otherwise.
	if grounded {
		percent, err := c.pid.Seek(c.cfg.HoverHeight, reading.Distance, dt)
		if err != nil {
			return c.discard(cmd, pidState, reserveState, err)
		}
		cmd.HoverPercent = percent
		cmd.Hover = reading.Normal.Mul(c.cfg.HoverForce*percent - c.cfg.HoverGravity*reading.Distance)
	} else {
		cmd.Hover = reading.Normal.Mul(-c.cfg.FallGravity)
	}

	//5.- Pitch and roll the body so its up axis matches the sensed normal.
	cmd.Alignment = c.align(reading.Normal)
	forward := cmd.Alignment.Rotate(physics.Forward)
	right := cmd.Alignment.Rotate(physics.Right)

	//6.- Yaw faster at low speed than near the terminal velocity.
	yaw := physics.Lerp(c.cfg.RotationSpeed.X(), c.cfg.RotationSpeed.Y(), speedFraction) * in.Rudder
	cmd.Steering = mgl64.Vec3{0, yaw, 0}

	//7.- Cancel the sideways drift within one step.
	sideways := velocity.Dot(right)
	cmd.SideFriction = right.Mul(-(sideways / dt) * c.cfg.SideFriction)

	//8.- Coast down when the thruster is released.
	cmd.Slow = in.Thruster <= 0

	//9.- Boost works in the air as well.
	cmd.BoostPower = c.reserve.CurrentBoostPower()
	if cmd.BoostPower > 0 {
		cmd.Boost = forward.Mul(c.cfg.DriveForce * cmd.BoostPower)
	}

	//10.- Brakes and propulsion need ground contact.
	if grounded {
		//11.- Braking scales the velocity down directly.
		cmd.Brake = in.Braking
		//12.- Thrust minus a drag that balances it at the terminal velocity.
		propulsion := c.cfg.DriveForce*in.Thruster - c.cfg.Drag()*mgl64.Clamp(speed, 0, c.cfg.TerminalVelocity)
		cmd.Propulsion = forward.Mul(propulsion)
	}

	if !cmd.Finite() {
		return c.discard(cmd, pidState, reserveState, errors.New("non-finite command"))
	}

	cmd.apply(c.body, c.cfg)
	c.grounded = grounded
	c.reading = reading
	c.alignment = cmd.Alignment
	c.speed = speed
	c.speedFraction = speedFraction
	c.rudder = in.Rudder
	c.inst.recordTick(cmd, c.cfg.HoverHeight)
	return cmd, nil
}

// align builds the orientation whose up axis is the normal and whose forward axis is the
// body's forward flattened onto the ground plane.
func (c *Controller) align(normal mgl64.Vec3) mgl64.Quat {
	candidates := []mgl64.Vec3{
		c.body.Rotation().Rotate(physics.Forward),
		c.alignment.Rotate(physics.Forward),
		physics.AnyPerpendicular(normal),
	}
	for _, candidate := range candidates {
		if rotation, ok := physics.LookRotation(physics.ProjectOnPlane(candidate, normal), normal); ok {
			return rotation
		}
	}
	return c.alignment
}

func (c *Controller) discard(cmd Command, pidState pid.State, reserveState boost.State, cause error) (Command, error) {
	c.pid.Restore(pidState)
	c.reserve.Restore(reserveState)
	c.skipped++
	c.inst.recordSkipped()
	c.logger.Warn("frame skipped",
		logging.Uint64("tick", cmd.Tick),
		logging.Bool("grounded", cmd.Grounded),
		logging.Float64("distance", cmd.Reading.Distance),
		logging.Error(cause),
	)
	return cmd, fmt.Errorf("%w: tick %d: %v", ErrInvalidFrame, cmd.Tick, cause)
}

// Animate eases the rendered body toward the aligned rotation banked into the current turn
// and returns it. frameDelta is the render frame time in seconds.
func (c *Controller) Animate(frameDelta float64) mgl64.Quat {
	if !(frameDelta > 0) {
		return c.bodyRotation
	}
	//1.- Bank harder at low speed, scaled by how far the rudder is deflected.
	speedFraction := mgl64.Clamp(c.body.Velocity().Len()/c.cfg.TerminalVelocity, 0, 1)
	angle := physics.Lerp(c.cfg.RollSpeed.X(), c.cfg.RollSpeed.Y(), speedFraction) * c.cfg.AngleOfRoll * -c.rudder
	roll := mgl64.QuatRotate(mgl64.DegToRad(angle), physics.Forward)
	//2.- Move a fraction of the way there each frame.
	target := c.alignment.Mul(roll)
	c.bodyRotation = physics.Nlerp(c.bodyRotation, target, frameDelta*c.cfg.BankingRate)
	return c.bodyRotation
}

// HandleCollision cancels the upward kick of wall contacts so the vehicle stays on the track.
// It reports whether a correction was applied; resting contacts and impulses without a
// vertical share leave the body alone.
func (c *Controller) HandleCollision(collision physics.Collision) bool {
	if !c.cfg.WallMask.Has(collision.Layer) || !physics.Finite(collision.Impulse) {
		return false
	}
	up := c.alignment.Rotate(physics.WorldUp)
	lift := collision.Impulse.Dot(up)
	if math.Abs(lift) < minWallLift {
		return false
	}
	upward := up.Mul(-lift)
	c.body.AddForce(upward.Mul(-1), physics.Impulse)
	c.inst.recordWallCorrection()
	return true
}

// HandleOverlap forwards trigger events to the gravity aggregator.
func (c *Controller) HandleOverlap(overlap physics.Overlap) {
	c.gravity.HandleOverlap(overlap)
}

// ID returns the controller label.
func (c *Controller) ID() string { return c.id }

// Config returns the tuning the controller was built with.
func (c *Controller) Config() Config { return c.cfg }

// Body returns the commanded rigid body.
func (c *Controller) Body() physics.Body { return c.body }

// Grounded reports whether the last committed tick found ground.
func (c *Controller) Grounded() bool { return c.grounded }

// Reading returns the ground sample of the last committed tick.
func (c *Controller) Reading() sensor.Reading { return c.reading }

// Alignment returns the physics orientation set on the last committed tick.
func (c *Controller) Alignment() mgl64.Quat { return c.alignment }

// BodyRotation returns the rendered, banked orientation.
func (c *Controller) BodyRotation() mgl64.Quat { return c.bodyRotation }

// Speed returns the forward speed sampled at the start of the last committed tick.
func (c *Controller) Speed() float64 { return c.speed }

// SpeedFraction returns the share of the terminal velocity reached, clamped to [0, 1].
func (c *Controller) SpeedFraction() float64 { return c.speedFraction }

// PID exposes the hover controller for inspection.
func (c *Controller) PID() *pid.Controller { return c.pid }

// Reserve exposes the boost gauge.
func (c *Controller) Reserve() *boost.Reserve { return c.reserve }

// Gravity exposes the gravity aggregator.
func (c *Controller) Gravity() *gravity.Aggregator { return c.gravity }

// Ticks returns how many ticks were requested, including skipped ones.
func (c *Controller) Ticks() uint64 { return c.tick }

// Skipped returns how many frames were discarded.
func (c *Controller) Skipped() uint64 { return c.skipped }
