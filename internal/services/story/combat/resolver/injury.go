package resolver

// CriticalSeverity is the injury severity of every critical hit.
const CriticalSeverity = 2

// HitLocation is one cell of the critical-hit table.
type HitLocation struct {
	Location    string
	SubLocation string
}

// HitLocations is the table a critical hit picks from uniformly.
var HitLocations = []HitLocation{
	{"Head", "Skull"},
	{"Head", "Eyes"},
	{"Torso", "Ribs"},
	{"Torso", "Abdomen"},
	{"Arms", "Upper Arm"},
	{"Arms", "Hand"},
	{"Legs", "Thigh"},
	{"Legs", "Foot"},
}
