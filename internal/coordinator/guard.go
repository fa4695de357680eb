package coordinator

import "github.com/spachava753/composite/internal/models"

// enter marks build as executing. It fails with a BuildCycleError when the
// build is already executing.
func (c *Coordinator) enter(build models.BuildID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.inFlight[build]; ok {
		return &models.BuildCycleError{Build: build}
	}
	c.inFlight[build] = struct{}{}
	return nil
}

// leave releases a successful enter.
func (c *Coordinator) leave(build models.BuildID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, build)
}

// InFlight reports whether build is currently executing.
func (c *Coordinator) InFlight(build models.BuildID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.inFlight[build]
	return ok
}
