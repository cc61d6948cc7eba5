package pathway

// Access is the set of travel modes allowed on a pathway.
type Access struct {
	Car     bool
	Bicycle bool
	Foot    bool
}

var allModes = Access{Car: true, Bicycle: true, Foot: true}

// DefaultAccess returns the modes a road class admits before explicit tags.
// Unknown classes admit everything.
func DefaultAccess(highway string) Access {
	switch highway {
	case "motorway":
		return Access{Car: true}
	case "trunk":
		return Access{Car: true, Bicycle: true}
	case "pedestrian", "footway", "cycleway", "path":
		return Access{Bicycle: true, Foot: true}
	case "primary", "secondary", "tertiary", "unclassified",
		"residential", "service", "track", "living_street":
		return allModes
	}
	return allModes
}

// AccessFor applies the way's access modifiers, in order, on top of the
// class default. access=no|private closes the way to every mode.
func AccessFor(tags map[string]string) Access {
	a := DefaultAccess(tags["highway"])

	if tags["vehicle"] == "no" {
		a.Car, a.Bicycle = false, false
	}
	switch tags["motor_vehicle"] {
	case "no":
		a.Car = false
	case "yes":
		a.Car = true
	}
	if tags["bicycle"] == "yes" {
		a.Bicycle = true
	}
	if tags["foot"] == "yes" {
		a.Foot = true
	}
	switch tags["motorcar"] {
	case "yes":
		a.Car = true
	case "no":
		a.Car = false
	}
	if b := tags["bicycle"]; b == "no" || b == "dismount" {
		a.Bicycle = false
	}
	if tags["foot"] == "no" {
		a.Foot = false
	}
	if acc := tags["access"]; acc == "no" || acc == "private" {
		a = Access{}
	}
	return a
}

// And keeps only the modes allowed by both a and o.
func (a Access) And(o Access) Access {
	return Access{
		Car:     a.Car && o.Car,
		Bicycle: a.Bicycle && o.Bicycle,
		Foot:    a.Foot && o.Foot,
	}
}
