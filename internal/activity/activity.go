package activity

// Type is one discrete label describing an instant of behavior
type Type string

const (
	PresentInactive Type = "present_inactive"
	Sleeping        Type = "sleeping"
	Eating          Type = "eating"
	Reading         Type = "reading"
	Cleaning        Type = "cleaning"
	WatchingTV      Type = "watching_tv"
	Calling         Type = "calling"
	Knitting        Type = "knitting"
	Talking         Type = "talking"
	Playing         Type = "playing"
	Absent          Type = "absent"
	Unknown         Type = "unknown"
)

// All lists every known activity type (excluding Unknown)
var All = []Type{
	PresentInactive, Sleeping, Eating, Reading, Cleaning,
	WatchingTV, Calling, Knitting, Talking, Playing, Absent,
}

// modelClassTable maps the vision model's output index to an activity type.
// The ordering is a configuration artifact of the deployed model: it must be
// re-validated against the model's label manifest whenever the model changes.
var modelClassTable = []Type{
	PresentInactive, // 0
	Sleeping,        // 1
	Eating,          // 2
	Reading,         // 3
	Cleaning,        // 4
	WatchingTV,      // 5
	Calling,         // 6
	Knitting,        // 7
	Talking,         // 8
	Playing,         // 9
}

// FromModelIndex maps a model output index to an activity type.
// Out-of-range indices map to Unknown.
func FromModelIndex(index int) Type {
	if index < 0 || index >= len(modelClassTable) {
		return Unknown
	}
	return modelClassTable[index]
}

// Parse returns the activity type for a label string, or Unknown
func Parse(label string) Type {
	for _, t := range All {
		if string(t) == label {
			return t
		}
	}
	return Unknown
}

func (t Type) String() string {
	return string(t)
}
