package model

// EventAction tags an event with what happened to its target.
type EventAction string

const (
	EventActionAdd    EventAction = "Add"
	EventActionUpdate EventAction = "Update"
	EventActionDelete EventAction = "Delete"
)

// EventTarget is the minimal shape carried by an event. Add events carry a
// full target payload; Update and Delete events may carry only the id.
type EventTarget struct {
	ID         string      `json:"id"`
	Document   *Document   `json:"document,omitempty"`
	Prediction *Prediction `json:"prediction,omitempty"`
}

// Event is the unit published on the event bus. Events are transient and
// never persisted.
type Event struct {
	Action EventAction `json:"action"`
	Target EventTarget `json:"target"`
}

// DocumentAdded builds the event published once a document and all of its
// rows are durably written.
func DocumentAdded(doc *Document) Event {
	return Event{Action: EventActionAdd, Target: EventTarget{ID: doc.ID, Document: doc}}
}

// DocumentUpdated builds the event published when a document's status changes.
func DocumentUpdated(id string) Event {
	return Event{Action: EventActionUpdate, Target: EventTarget{ID: id}}
}

// DocumentDeleted builds the event published on soft delete.
func DocumentDeleted(id string) Event {
	return Event{Action: EventActionDelete, Target: EventTarget{ID: id}}
}

// PredictionAdded builds the event published once a prediction and all of
// its results are durably written.
func PredictionAdded(p *Prediction) Event {
	return Event{Action: EventActionAdd, Target: EventTarget{ID: p.ID, Prediction: p}}
}
