// Package tracker implements Trackers, which track and save data in an
// experiment
package tracker

import (
	"encoding/gob"
	"log"
	"os"

	"sfneuman.com/turnrl/turn"
)

// Interface Tracker keeps track of experiment data and saves the data
// after the experiment has finished. Experiments send every collected
// turn record of a successful window to each registered Tracker; the
// Tracker decides which data it caches and saves.
type Tracker interface {
	Track(rec turn.Record)
	Save()

	// Restart drops data accumulated for episodes still in progress,
	// keeping everything already cached for completed episodes. Called
	// when a failed window discards its rollouts and the environments
	// restart from fresh episodes.
	Restart()
}

// LoadData loads and returns the data saved by a Tracker
func LoadData(filename string) []float64 {
	// Open file
	file, err := os.Open(filename)
	if err != nil {
		log.Fatalf("could not open data file: %v", err)
	}
	defer file.Close()

	// Create the decoder and the variable to store the data in
	dec := gob.NewDecoder(file)
	var data []float64

	// Decode the data
	err = dec.Decode(&data)
	if err != nil {
		log.Fatalf("could not decode data: %v", err)
	}

	return data
}
