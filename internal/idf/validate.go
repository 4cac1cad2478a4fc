package idf

import "fmt"

// Issue is one finding from Validate.
type Issue struct {
	Severity string `json:"severity"` // "error" or "warning"
	Message  string `json:"message"`
}

// Validate runs structural checks over a model: empty names, duplicate
// names within a class, and dangling zone references from internal-load
// objects. It does not interpret building physics.
func Validate(m *Model) []Issue {
	var issues []Issue

	zones := make(map[string]bool)
	for _, name := range m.Names(ClassZone) {
		zones[canonical(name)] = true
	}

	for _, class := range m.Classes() {
		seen := make(map[string]int)
		for _, o := range m.Objects(class) {
			name := o.Name()
			if name == "" {
				issues = append(issues, Issue{
					Severity: "warning",
					Message:  fmt.Sprintf("%s object with empty name", class),
				})
				continue
			}
			seen[canonical(name)]++
		}
		for name, n := range seen {
			if n > 1 {
				issues = append(issues, Issue{
					Severity: "error",
					Message:  fmt.Sprintf("%s: duplicate name %q (%d objects)", class, name, n),
				})
			}
		}
	}

	if len(zones) > 0 {
		for _, class := range []string{ClassPeople, ClassLights, ClassElectricEquipment, ClassInfiltration} {
			for _, o := range m.Objects(class) {
				ref, ok := o.Get("Zone_or_ZoneList_Name")
				if !ok {
					ref, ok = o.Get("Zone_or_ZoneList_or_Space_or_SpaceList_Name")
				}
				if !ok || ref == "" {
					continue
				}
				if !zones[canonical(ref)] {
					issues = append(issues, Issue{
						Severity: "error",
						Message:  fmt.Sprintf("%s %q references unknown zone %q", class, o.Name(), ref),
					})
				}
			}
		}
	}

	return issues
}
