// Package idf holds the in-memory representation of an EnergyPlus IDF
// document and the gateway that loads and persists it.
//
// A Model is an ordered aggregate of typed object collections. It is
// exclusively owned by one session at a time and mutated only through
// registered operation handlers; everything here is plain data access.
package idf

import "strings"

// Well-known IDF class names used by the operation handlers.
const (
	ClassZone              = "Zone"
	ClassPeople            = "People"
	ClassLights            = "Lights"
	ClassElectricEquipment = "ElectricEquipment"
	ClassInfiltration      = "ZoneInfiltration:DesignFlowRate"
	ClassSimulationControl = "SimulationControl"
	ClassRunPeriod         = "RunPeriod"
	ClassOutputVariable    = "Output:Variable"
	ClassOutputMeter       = "Output:Meter"
	ClassMaterial          = "Material"
	ClassWindowMaterial    = "WindowMaterial:SimpleGlazingSystem"
	ClassConstruction      = "Construction"
	ClassSurface           = "BuildingSurface:Detailed"
	ClassFenestration      = "FenestrationSurface:Detailed"
	ClassScheduleCompact   = "Schedule:Compact"
	ClassAirLoop           = "AirLoopHVAC"
	ClassPlantLoop         = "PlantLoop"
	ClassCondenserLoop     = "CondenserLoop"
	ClassBranch            = "Branch"
	ClassBranchList        = "BranchList"
)

// Field is one named value inside an IDF object. Name comes from the
// document's field annotation comments and may be empty for unannotated
// positional fields.
type Field struct {
	Name  string
	Value string
}

// Object is a single IDF object: a class plus ordered fields.
type Object struct {
	Class  string
	Fields []Field
}

// NewObject builds an object from alternating field name/value pairs.
func NewObject(class string, nameValuePairs ...string) *Object {
	o := &Object{Class: class}
	for i := 0; i+1 < len(nameValuePairs); i += 2 {
		o.Fields = append(o.Fields, Field{Name: nameValuePairs[i], Value: nameValuePairs[i+1]})
	}
	return o
}

// Name returns the object's name: the value of its "Name" field, or the
// first field value for classes whose leading field is the name.
func (o *Object) Name() string {
	for _, f := range o.Fields {
		if canonical(f.Name) == "name" {
			return f.Value
		}
	}
	if len(o.Fields) > 0 {
		return o.Fields[0].Value
	}
	return ""
}

// Get returns the value of the named field. Matching is tolerant of the
// space/underscore and case differences between IDF annotations
// ("Number of People") and operation parameters ("Number_of_People").
func (o *Object) Get(field string) (string, bool) {
	want := canonical(field)
	for _, f := range o.Fields {
		if canonical(f.Name) == want {
			return f.Value, true
		}
	}
	return "", false
}

// Set replaces the named field's value, returning the previous value.
// The second result is false when the object has no such field.
func (o *Object) Set(field, value string) (string, bool) {
	want := canonical(field)
	for i := range o.Fields {
		if canonical(o.Fields[i].Name) == want {
			old := o.Fields[i].Value
			o.Fields[i].Value = value
			return old, true
		}
	}
	return "", false
}

// FieldNames returns the annotated field names in document order.
func (o *Object) FieldNames() []string {
	names := make([]string, 0, len(o.Fields))
	for _, f := range o.Fields {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return names
}

func (o *Object) clone() *Object {
	c := &Object{Class: o.Class, Fields: make([]Field, len(o.Fields))}
	copy(c.Fields, o.Fields)
	return c
}

// canonical normalizes a field or class name for matching.
func canonical(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, " ", "_")
}

// Model is a loaded IDF document: object collections keyed by class, with
// both class order and object order preserved from the source document.
type Model struct {
	classOrder []string
	objects    map[string][]*Object
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{objects: make(map[string][]*Object)}
}

// Add appends an object to its class collection.
func (m *Model) Add(o *Object) {
	key := canonical(o.Class)
	if _, ok := m.objects[key]; !ok {
		m.classOrder = append(m.classOrder, o.Class)
	}
	m.objects[key] = append(m.objects[key], o)
}

// Objects returns the collection for a class in document order. The
// returned slice is the live collection; callers outside operation
// handlers must not mutate it.
func (m *Model) Objects(class string) []*Object {
	return m.objects[canonical(class)]
}

// Names returns the object names of a class collection in order.
func (m *Model) Names(class string) []string {
	objs := m.Objects(class)
	names := make([]string, 0, len(objs))
	for _, o := range objs {
		names = append(names, o.Name())
	}
	return names
}

// Classes returns every class present, in order of first appearance.
func (m *Model) Classes() []string {
	out := make([]string, len(m.classOrder))
	copy(out, m.classOrder)
	return out
}

// Count returns the number of objects of a class.
func (m *Model) Count(class string) int {
	return len(m.objects[canonical(class)])
}

// Clone returns a deep copy. Dry-run batches mutate a clone so the live
// session model is untouched regardless of how far the batch gets.
func (m *Model) Clone() *Model {
	c := NewModel()
	for _, class := range m.classOrder {
		for _, o := range m.objects[canonical(class)] {
			c.Add(o.clone())
		}
	}
	return c
}
