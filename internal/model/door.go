package model

// Family distinguishes the two door types driven by the controller.
type Family string

const (
	FamilyPod  Family = "pod"
	FamilyPort Family = "port"
)

// LineState is the observed state of one digital output line.
type LineState struct {
	Name    string `json:"name"`
	Engaged bool   `json:"engaged"`
}

// DoorView is the API read model for a single door leaf.
type DoorView struct {
	Key         string    `json:"key"`
	Family      Family    `json:"family"`
	DoorID      string    `json:"door_id"`
	ZoneID      string    `json:"zone_id,omitempty"`
	Leaf        string    `json:"leaf,omitempty"`
	Topic       string    `json:"topic"`
	Addressable bool      `json:"addressable"`
	Busy        bool      `json:"busy"`
	Expand      LineState `json:"expand"`
	Retract     LineState `json:"retract"`
}
