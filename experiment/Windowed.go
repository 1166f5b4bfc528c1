package experiment

import (
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"sfneuman.com/turnrl/agent"
	"sfneuman.com/turnrl/batch"
	"sfneuman.com/turnrl/bootstrap"
	"sfneuman.com/turnrl/buffer/gae"
	"sfneuman.com/turnrl/buffer/window"
	"sfneuman.com/turnrl/environment"
	"sfneuman.com/turnrl/episode"
	"sfneuman.com/turnrl/experiment/tracker"
	"sfneuman.com/turnrl/turn"
	"sfneuman.com/turnrl/utils/progressbar"
)

// Windowed is an Experiment that alternates fixed-budget collection
// windows with gradient updates. Each window collects an equal share
// of the turn budget from every environment instance concurrently,
// drains the buffer once all collection workers have finished,
// resolves bootstrap values for truncated episodes, computes advantage
// targets, and hands the assembled minibatches to the Trainer.
//
// A window that fails at any stage is discarded whole: its rollouts
// produce no gradient update, the failure is counted, and the window
// is retried with fresh rollouts up to the configured retry budget.
type Windowed struct {
	envs    []environment.Environment
	policy  agent.Policy
	critic  agent.Critic
	trainer Trainer

	buffer    *window.Buffer
	episodes  *episode.Tracker
	engine    *gae.Engine
	assembler *batch.Assembler

	config           Config
	turnsPerInstance int

	// Per-instance collection state, each slot owned by exactly one
	// collection worker at a time
	obs   []mat.Vector
	steps []int

	trackers []tracker.Tracker
	failed   int
}

// NewWindowed creates and returns a new windowed experiment. One
// environment value is required per configured instance slot; each is
// reset once at construction so that collection starts from a fresh
// episode in every slot.
func NewWindowed(envs []environment.Environment, policy agent.Policy,
	critic agent.Critic, trainer Trainer, config Config,
	trackers ...tracker.Tracker) (*Windowed, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(envs) != config.Collection.InstanceCount {
		return nil, fmt.Errorf("newwindowed: wrong number of environment "+
			"instances \n\twant(%d)\n\thave(%d)",
			config.Collection.InstanceCount, len(envs))
	}

	instances := config.Collection.InstanceCount
	budget := config.Collection.TurnsPerWindow

	buffer, err := window.New(instances, budget)
	if err != nil {
		return nil, fmt.Errorf("newwindowed: could not create turn "+
			"buffer: %v", err)
	}

	episodes, err := episode.New(instances)
	if err != nil {
		return nil, fmt.Errorf("newwindowed: could not create episode "+
			"tracker: %v", err)
	}

	engine, err := gae.New(config.Advantage)
	if err != nil {
		return nil, fmt.Errorf("newwindowed: could not create advantage "+
			"engine: %v", err)
	}

	obsDim := envs[0].ObservationSpec().Shape.Len()
	actDim := envs[0].ActionSpec().Shape.Len()
	assembler, err := batch.New(config.Assembly, obsDim, actDim)
	if err != nil {
		return nil, fmt.Errorf("newwindowed: could not create batch "+
			"assembler: %v", err)
	}

	obs := make([]mat.Vector, instances)
	for i, env := range envs {
		obs[i] = env.Reset()
	}

	return &Windowed{
		envs:             envs,
		policy:           policy,
		critic:           critic,
		trainer:          trainer,
		buffer:           buffer,
		episodes:         episodes,
		engine:           engine,
		assembler:        assembler,
		config:           config,
		turnsPerInstance: budget / instances,
		obs:              obs,
		steps:            make([]int, instances),
		trackers:         trackers,
	}, nil
}

// Register registers a tracker.Tracker with the Experiment so that
// data generated during the experiment can be tracked and saved
func (w *Windowed) Register(t tracker.Tracker) {
	w.trackers = append(w.trackers, t)
}

// Run runs the entire experiment for all collection windows. It
// returns an error only when a window fails more times than the
// configured retry budget allows; individual window failures are
// counted and retried with fresh rollouts.
func (w *Windowed) Run() error {
	pbar := progressbar.NewProgressBar(65, w.config.Windows, time.Second,
		false)
	pbar.Display()
	defer pbar.Close()

	for i := 0; i < w.config.Windows; i++ {
		retries := 0
		for {
			err := w.RunWindow()
			if err == nil {
				break
			}

			w.failed++
			w.resync()
			if retries >= w.config.MaxRetries {
				return fmt.Errorf("run: window %d failed: %v", i, err)
			}
			retries++
		}
		pbar.Increment()
	}
	return nil
}

// RunWindow runs a single collection window end to end: collect,
// drain, track episodes, resolve bootstrap values, compute advantages,
// assemble minibatches, and update. Any error means the window
// produced no gradient update and its data was discarded.
func (w *Windowed) RunWindow() error {
	if err := w.collect(); err != nil {
		return err
	}

	// Drain barrier: every collection worker has finished
	win, err := w.buffer.Drain()
	if err != nil {
		return err
	}

	for _, id := range win.Instances() {
		for _, rec := range win.Turns(id) {
			if err := w.episodes.Observe(rec); err != nil {
				return err
			}
		}
	}

	tails, err := bootstrap.Resolve(win, w.episodes, w.critic.Value)
	if err != nil {
		return err
	}

	targets, err := w.engine.Compute(win, tails)
	if err != nil {
		return err
	}

	batches, err := w.assembler.Assemble(targets)
	if err != nil {
		return err
	}

	if err := w.trainer.Update(batches); err != nil {
		return err
	}

	// Trackers only ever see windows that produced a gradient update
	for _, id := range win.Instances() {
		for _, rec := range win.Turns(id) {
			w.track(rec)
		}
	}
	return nil
}

// collect runs one collection worker per environment instance, each
// appending its share of the window's turn budget to the buffer.
func (w *Windowed) collect() error {
	var wait sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i := range w.envs {
		wait.Add(1)
		go func(id int) {
			defer wait.Done()
			if err := w.collectInstance(id); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(i)
	}
	wait.Wait()

	return firstErr
}

// collectInstance advances a single environment instance through its
// share of the window's turns. Environment faults are absorbed as
// forced terminations: the faulting episode ends with no reward
// adjustment and the slot restarts from a fresh episode.
func (w *Windowed) collectInstance(id int) error {
	env := w.envs[id]

	for t := 0; t < w.turnsPerInstance; t++ {
		obs := w.obs[id]

		action, err := w.policy.SelectAction(obs)
		if err != nil {
			return fmt.Errorf("collect: could not select action for "+
				"instance %d: %v", id, err)
		}

		rec := turn.Record{
			InstanceID:  id,
			Step:        w.steps[id],
			Observation: obs,
			Action:      action.Vector,
			LogProb:     action.LogProb,
		}

		step, err := env.Step(action.Vector)
		if err != nil {
			if !environment.IsFault(err) {
				return fmt.Errorf("collect: instance %d: %v", id, err)
			}
			step = environment.Step{
				Observation: env.Reset(),
				Terminal:    true,
			}
		}
		environment.Annotate(&rec, step)

		value, err := w.critic.Value(obs)
		if err != nil {
			return fmt.Errorf("collect: could not query critic for "+
				"instance %d: %v", id, err)
		}
		rec.Value = value
		rec.HasValue = true

		if tc, ok := w.critic.(agent.TokenCritic); ok && rec.Tokens() > 0 {
			tokenValues, err := tc.TokenValues(obs, rec.Tokens())
			if err != nil {
				return fmt.Errorf("collect: could not query token critic "+
					"for instance %d: %v", id, err)
			}
			rec.TokenValues = tokenValues
		}

		if err := w.buffer.Append(rec); err != nil {
			return err
		}

		w.obs[id] = step.Observation
		if rec.Done {
			w.steps[id] = 0
		} else {
			w.steps[id]++
		}
	}
	return nil
}

// resync restores a consistent collection state after a failed window:
// partial rollouts are dropped, every environment restarts from a
// fresh episode, and the episode tracker and data trackers forget
// their in-progress episodes.
func (w *Windowed) resync() {
	w.buffer.Discard()
	w.episodes.Restart()
	for i, env := range w.envs {
		w.obs[i] = env.Reset()
		w.steps[i] = 0
	}
	for _, t := range w.trackers {
		t.Restart()
	}
}

// Failed returns the number of windows discarded so far.
func (w *Windowed) Failed() int {
	return w.failed
}

// Save saves all the data cached by the Trackers to disk
func (w *Windowed) Save() {
	for _, t := range w.trackers {
		t.Save()
	}
}

// track caches one collected turn in each Tracker
func (w *Windowed) track(rec turn.Record) {
	for _, t := range w.trackers {
		t.Track(rec)
	}
}
