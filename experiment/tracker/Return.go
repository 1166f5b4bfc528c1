package tracker

import (
	"encoding/gob"
	"log"
	"os"

	"sfneuman.com/turnrl/turn"
)

// Return tracks and saves the episodic return in an experiment. Each
// environment instance accumulates its own running return; when an
// instance's turn ends its episode, the accumulated return is cached
// in completion order across instances.
//
// Note: An episode must finish for this Tracker to save its data. An
// episode still in progress when the experiment ends, including any
// episode truncated by the final window, contributes nothing.
type Return struct {
	running        map[int]float64
	episodeReturns []float64
	filename       string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) Tracker {
	return &Return{
		running:  make(map[int]float64),
		filename: filename,
	}
}

// Track accumulates the reward of one collected turn into its
// instance's running return, caching the total when the episode
// finishes.
func (r *Return) Track(rec turn.Record) {
	r.running[rec.InstanceID] += rec.Reward
	if rec.Done {
		r.episodeReturns = append(r.episodeReturns, r.running[rec.InstanceID])
		r.running[rec.InstanceID] = 0.0
	}
}

// Restart drops the running returns of in-progress episodes, keeping
// the returns of episodes that already finished.
func (r *Return) Restart() {
	r.running = make(map[int]float64)
}

// Save saves the data tracked by the Return Tracker to disk.
func (r *Return) Save() {
	// Open the file to save to
	file, err := os.Create(r.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	// Encode and save the file
	en := gob.NewEncoder(file)
	if err = en.Encode(r.episodeReturns); err != nil {
		log.Fatalf("could not encode return data: %v", err)
	}
}
