package tracker

import (
	"encoding/gob"
	"log"
	"os"

	"sfneuman.com/turnrl/turn"
)

// EpisodeLength tracks and saves the number of turns per episode in an
// experiment, in completion order across environment instances.
type EpisodeLength struct {
	running        map[int]float64
	episodeLengths []float64
	filename       string
}

// NewEpisodeLength creates and returns a new *EpisodeLength Tracker
func NewEpisodeLength(filename string) Tracker {
	return &EpisodeLength{
		running:  make(map[int]float64),
		filename: filename,
	}
}

// Track counts one collected turn toward its instance's episode
// length, caching the total when the episode finishes.
func (e *EpisodeLength) Track(rec turn.Record) {
	e.running[rec.InstanceID]++
	if rec.Done {
		e.episodeLengths = append(e.episodeLengths,
			e.running[rec.InstanceID])
		e.running[rec.InstanceID] = 0.0
	}
}

// Restart drops the turn counts of in-progress episodes, keeping the
// lengths of episodes that already finished.
func (e *EpisodeLength) Restart() {
	e.running = make(map[int]float64)
}

// Save saves the data tracked by the EpisodeLength Tracker to disk.
func (e *EpisodeLength) Save() {
	file, err := os.Create(e.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(e.episodeLengths); err != nil {
		log.Fatalf("could not encode episode length data: %v", err)
	}
}
