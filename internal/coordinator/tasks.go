package coordinator

import (
	"slices"

	"github.com/spachava753/composite/internal/models"
)

// register appends the artifact's tasks to the build's pending tasks.
func (c *Coordinator) register(artifact models.Artifact) models.BuildID {
	build := artifact.Build()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[build] = append(c.pending[build], artifact.Tasks...)
	return build
}

// claim returns the pending tasks of build that were never dispatched and
// records them as dispatched. Filtering and recording happen under one lock
// so two callers can never claim the same task.
func (c *Coordinator) claim(build models.BuildID) []models.TaskPath {
	c.mu.Lock()
	defer c.mu.Unlock()

	done := c.completed[build]
	if done == nil {
		done = make(map[models.TaskPath]struct{})
		c.completed[build] = done
	}

	var claimed []models.TaskPath
	for _, task := range c.pending[build] {
		if _, ok := done[task]; ok {
			continue
		}
		done[task] = struct{}{}
		claimed = append(claimed, task)
	}
	return claimed
}

// Pending returns a copy of the tasks registered for build, in registration order.
func (c *Coordinator) Pending(build models.BuildID) []models.TaskPath {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.pending[build])
}

// Completed returns the tasks already dispatched for build, sorted.
func (c *Coordinator) Completed(build models.BuildID) []models.TaskPath {
	c.mu.Lock()
	defer c.mu.Unlock()

	tasks := make([]models.TaskPath, 0, len(c.completed[build]))
	for task := range c.completed[build] {
		tasks = append(tasks, task)
	}
	slices.Sort(tasks)
	return tasks
}
