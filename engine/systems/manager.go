package systems

import "fmt"

// System is anything updated once per frame against the world.
type System interface {
	Update(world *World, dt float64) error
}

// SystemFunc adapts a function to System.
type SystemFunc func(world *World, dt float64) error

func (f SystemFunc) Update(world *World, dt float64) error { return f(world, dt) }

type namedSystem struct {
	name   string
	system System
}

// SystemManager updates its systems in registration order and stops at the
// first error.
type SystemManager struct {
	systems []namedSystem
}

func NewSystemManager() *SystemManager {
	return &SystemManager{}
}

func (sm *SystemManager) Register(name string, s System) error {
	for _, ns := range sm.systems {
		if ns.name == name {
			return fmt.Errorf("system %q already registered", name)
		}
	}
	sm.systems = append(sm.systems, namedSystem{name: name, system: s})
	return nil
}

func (sm *SystemManager) Get(name string) System {
	for _, ns := range sm.systems {
		if ns.name == name {
			return ns.system
		}
	}
	return nil
}

func (sm *SystemManager) Names() []string {
	names := make([]string, len(sm.systems))
	for i, ns := range sm.systems {
		names[i] = ns.name
	}
	return names
}

func (sm *SystemManager) Update(world *World, dt float64) error {
	for _, ns := range sm.systems {
		if err := ns.system.Update(world, dt); err != nil {
			return fmt.Errorf("system %s: %w", ns.name, err)
		}
	}
	return nil
}
