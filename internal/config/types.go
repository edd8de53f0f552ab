package config

// DefaultLocations lists the monitoring stations the faker backend serves.
var DefaultLocations = []string{
	"Delhi", "Mumbai", "Kolkata", "Chennai", "Bengaluru",
	"Beijing", "Shanghai", "Jakarta", "Lahore", "Dhaka",
	"Los Angeles", "Mexico City", "Santiago", "Krakow", "Milan",
}

// ValidLocations is the membership set for DefaultLocations.
var ValidLocations = func() map[string]bool {
	m := make(map[string]bool, len(DefaultLocations))
	for _, l := range DefaultLocations {
		m[l] = true
	}
	return m
}()
