// Package experiment implements functionality for running a training
// experiment as a sequence of collection windows
package experiment

import (
	"fmt"

	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/experiment/tracker"
	"sfneuman.com/turnrl/spec"
)

// Trainer consumes the assembled minibatches of one window as the sole
// input to policy and critic gradient updates. A Trainer is never
// handed a partially processed window: the experiment either delivers
// every minibatch of a window or, on fatal error, none.
type Trainer interface {
	Update(batches []batch.Minibatch) error
}

// Interface Experiment outlines structs that can run experiments.
// Experiments track collected turn records, caching data in RAM
// through tracker.Trackers to be later saved to disk with Save(),
// usually after the experiment has been run. The Run() method runs
// every collection window until the configured number of windows
// completes or a window fails beyond its retry budget.
type Experiment interface {
	Run() error

	// Save all tracked data to disk
	Save()

	// Adds a new tracker.Tracker to the (possibly already running)
	// experiment
	Register(t tracker.Tracker)
}

// Config represents a configuration of an experiment.
type Config struct {
	// Windows is the number of collection windows to run. Each window
	// collects Collection.TurnsPerWindow turns and produces one round
	// of gradient updates.
	Windows int

	// MaxRetries bounds how many times a failed window is retried with
	// fresh rollouts before the run aborts.
	MaxRetries int

	Collection spec.Collection
	Advantage  gae.Config
	Assembly   batch.Config
}

// Validate returns an error if the configuration describes an
// impossible experiment.
func (c Config) Validate() error {
	if c.Windows < 1 {
		return fmt.Errorf("validate: experiment needs at least 1 window, "+
			"got %d", c.Windows)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("validate: retries cannot be negative, got %d",
			c.MaxRetries)
	}
	if c.Collection.InstanceCount < 1 {
		return fmt.Errorf("validate: need at least 1 environment "+
			"instance, got %d", c.Collection.InstanceCount)
	}
	if c.Collection.TurnsPerWindow%c.Collection.InstanceCount != 0 {
		return fmt.Errorf("validate: turns per window must divide evenly "+
			"across instances \n\twant(multiple of %d)\n\thave(%d)",
			c.Collection.InstanceCount, c.Collection.TurnsPerWindow)
	}
	if err := c.Advantage.Validate(); err != nil {
		return err
	}
	return c.Assembly.Validate()
}
