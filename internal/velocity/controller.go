package velocity

// State is the controller's 2-state activation machine (spec §4.5).
type State int

const (
	Idle State = iota
	Scrolling
)

func (s State) String() string {
	if s == Scrolling {
		return "SCROLLING"
	}
	return "IDLE"
}

// Transition marks which edge, if any, the controller crossed this frame.
type Transition int

const (
	None Transition = iota
	Begin
	End
)

// Update is the controller's per-frame output: current state, the smoothed
// velocity that drove it, and any transition (spec §4.5).
type Update struct {
	State      State
	Velocity   Velocity2D
	Transition Transition
}

// ControllerConfig holds the tunables of spec §4.5. EndIdleHoldMs disabled
// (zero) means the OS momentum owns the scroll tail, per spec default.
type ControllerConfig struct {
	EndIdleThreshold float64
	EndIdleHoldMs    int64
	HandLossGraceMs  int64
}

// DefaultControllerConfig returns spec §4.5's defaults: end-on-idle-hold
// disabled.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		EndIdleThreshold: 0,
		EndIdleHoldMs:    0,
		HandLossGraceMs:  200,
	}
}

// Controller drives Idle<->Scrolling transitions from TouchProof's
// touching signal, the high-five pose flag, and hand presence (spec §4.5).
// It owns no velocity estimation itself; callers feed it the Tracker's
// smoothed output each frame.
type Controller struct {
	cfg   ControllerConfig
	state State

	belowIdleSinceMs int64
	haveBelowIdle    bool

	haveLastSeen bool
	lastSeenMs   int64
}

// NewController returns a Controller using cfg. A zero-value cfg is
// replaced wholesale by DefaultControllerConfig, since EndIdleHoldMs==0 is
// itself a meaningful "disabled" value and cannot be used as a per-field
// sentinel.
func NewController(cfg ControllerConfig) *Controller {
	if cfg == (ControllerConfig{}) {
		cfg = DefaultControllerConfig()
	}
	return &Controller{cfg: cfg, state: Idle}
}

// State returns the controller's current activation state.
func (c *Controller) State() State {
	return c.state
}

// Update advances the controller by one frame. handPresent is false when
// the landmark provider found no hand this frame (spec §4.5 "hand lost
// longer than grace").
func (c *Controller) Update(touching bool, highFive bool, handPresent bool, v Velocity2D, nowMs int64) Update {
	if handPresent {
		c.haveLastSeen = true
		c.lastSeenMs = nowMs
	}
	handLost := c.haveLastSeen && nowMs-c.lastSeenMs > c.cfg.HandLossGraceMs

	switch c.state {
	case Idle:
		if touching && handPresent && !handLost {
			c.state = Scrolling
			c.haveBelowIdle = false
			return Update{State: Scrolling, Velocity: v, Transition: Begin}
		}
		return Update{State: Idle, Velocity: v, Transition: None}

	case Scrolling:
		if !touching || highFive || handLost {
			c.state = Idle
			c.haveBelowIdle = false
			return Update{State: Idle, Velocity: v, Transition: End}
		}
		if c.cfg.EndIdleHoldMs > 0 {
			if v.Magnitude < c.cfg.EndIdleThreshold {
				if !c.haveBelowIdle {
					c.haveBelowIdle = true
					c.belowIdleSinceMs = nowMs
				} else if nowMs-c.belowIdleSinceMs >= c.cfg.EndIdleHoldMs {
					c.state = Idle
					c.haveBelowIdle = false
					return Update{State: Idle, Velocity: v, Transition: End}
				}
			} else {
				c.haveBelowIdle = false
			}
		}
		return Update{State: Scrolling, Velocity: v, Transition: None}
	}
	return Update{State: c.state, Velocity: v, Transition: None}
}
