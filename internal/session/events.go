package session

// Event is a progress or lifecycle event fanned out to the organizer channel,
// the affected participant's channel, or both. Delivery is best-effort:
// events are published after the state mutation commits and are never awaited
// or rolled back.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// EventSink receives published events. The in-process SSE broker implements
// it; a nil sink silently drops everything.
type EventSink interface {
	Publish(channel string, e Event)
}

// Event types.
const (
	EventParticipantJoined       = "participant-joined"
	EventParticipantLeft         = "participant-left"
	EventLocationUpdated         = "location-updated"
	EventPointPassed             = "point-passed"
	EventTaskCompleted           = "task-completed"
	EventParticipantRejected     = "participant-rejected"
	EventParticipantDisqualified = "participant-disqualified"
	EventScoresUpdated           = "scores-updated"
	EventPhotoSubmitted          = "photo-submitted"
	EventPhotoModerated          = "photo-moderated"
	EventSessionCancelled        = "session-cancelled"
	EventSessionEnded            = "session-ended"
)

// OrganizerChannel names the per-session organizer event channel.
func OrganizerChannel(sessionID string) string {
	return "session:" + sessionID + ":organizer"
}

// ParticipantChannel names a participant's private event channel.
func ParticipantChannel(participantID string) string {
	return "participant:" + participantID
}

func (r *Runtime) emit(sessionID string, participantID string, e Event) {
	if r.events == nil {
		return
	}
	r.events.Publish(OrganizerChannel(sessionID), e)
	if participantID != "" {
		r.events.Publish(ParticipantChannel(participantID), e)
	}
}
