package aq

import (
	"math/rand"
	"sync"
	"time"
)

// Generator produces plausible air-quality snapshots as a bounded random
// walk per location. Used by the faker backend; real deployments read from
// a measurement ingest pipeline instead.
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	state map[string]int // location -> last AQI
}

func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		state: make(map[string]int),
	}
}

// Next advances the random walk for location and returns a fresh snapshot.
func (g *Generator) Next(location string) *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	aqi, ok := g.state[location]
	if !ok {
		// Seed each location at a different baseline so dashboards
		// showing multiple cities don't look cloned.
		aqi = 40 + g.rng.Intn(120)
	}

	aqi += g.rng.Intn(11) - 5
	if aqi < 5 {
		aqi = 5
	}
	if aqi > 480 {
		aqi = 480
	}
	g.state[location] = aqi

	pm25 := float64(aqi) * 0.6 * (0.9 + g.rng.Float64()*0.2)
	return &Snapshot{
		Location:  location,
		Timestamp: time.Now().UnixMilli(),
		AQI:       aqi,
		Category:  Categorize(aqi),
		Dominant:  "pm25",
		PM25:      pm25,
		PM10:      pm25 * 1.8,
		NO2:       10 + g.rng.Float64()*40,
		O3:        20 + g.rng.Float64()*60,
		SO2:       2 + g.rng.Float64()*15,
		CO:        0.2 + g.rng.Float64()*1.5,
	}
}
