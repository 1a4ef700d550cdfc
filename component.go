package duokit

// Component is one unit of controllable behavior bound to peripherals:
// a relay switch, a window covering, a garage door opener, or a
// pass-through exposed input.
type Component interface {
	Name() string
	// Init wires peripherals and hap callbacks. Failure aborts only
	// this component.
	Init() error
	// Primary reports whether this is the device's main service. At
	// most one component in the graph is primary.
	Primary() bool
	// Sync is called on every tick to run the component's own state
	// machine and refresh characteristics.
	Sync() error
}

// component carries the fields every concrete component shares.
type component struct {
	name    string
	primary bool
}

func (c *component) Name() string {
	return c.name
}

func (c *component) Primary() bool {
	return c.primary
}

func (c *component) setPrimary(p bool) {
	c.primary = p
}
