package sim

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a element that is being simulated.
type Component interface {
	Named
	Hookable

	GetPortByName(name string) Port
	Ports() []Port
}

// ComponentBase provides some functions that other component can use.
type ComponentBase struct {
	HookableBase

	name  string
	ports map[string]Port
}

// NewComponentBase creates a new ComponentBase
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name
	c.ports = make(map[string]Port)

	return c
}

// Name returns the name of the BasicComponent
func (c *ComponentBase) Name() string {
	return c.name
}

// AddPort registers a port under a short name, for example "Top".
func (c *ComponentBase) AddPort(name string, port Port) {
	if _, found := c.ports[name]; found {
		log.Panicf("port %s already exists on component %s", name, c.name)
	}

	c.ports[name] = port
}

// GetPortByName returns the port by the name of the port.
func (c *ComponentBase) GetPortByName(name string) Port {
	port, found := c.ports[name]
	if !found {
		available := make([]string, 0, len(c.ports))
		for n := range c.ports {
			available = append(available, n)
		}

		sort.Strings(available)

		log.Panicf("port %s is not available on component %s, "+
			"available ports: [%s]",
			name, c.name, strings.Join(available, ", "))
	}

	return port
}

// Ports returns all the ports of the component, ordered by the port name.
func (c *ComponentBase) Ports() []Port {
	names := make([]string, 0, len(c.ports))
	for n := range c.ports {
		names = append(names, n)
	}

	sort.Strings(names)

	ports := make([]Port, 0, len(names))
	for _, n := range names {
		ports = append(ports, c.ports[n])
	}

	return ports
}

// String returns the name of the component.
func (c *ComponentBase) String() string {
	return fmt.Sprintf("Component(%s)", c.name)
}
