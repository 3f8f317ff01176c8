package notify

import (
	"fmt"
	"log"
)

// Event is one review activity entry.
type Event struct {
	Type        string
	ContainerID string
	VersionID   string
	Title       string
	Actor       string
	Detail      string
}

const (
	EventVersionUploaded = "version_uploaded"
	EventActionRecorded  = "action_recorded"
	EventCommentAdded    = "comment_added"
)

// Sink logs review activity and, when SMTP is configured, mails the agency
// about reviewer-initiated events. Uploads are agency-initiated and produce
// an activity entry only.
type Sink struct {
	email       *Email
	agencyEmail string
}

func NewSink(email *Email, agencyEmail string) *Sink {
	return &Sink{email: email, agencyEmail: agencyEmail}
}

// Record logs the event and delivers any mail asynchronously. It never
// returns an error; the review core must not block or fail on the sink.
func (s *Sink) Record(event Event) {
	log.Printf("activity: type=%s container=%s version=%s actor=%q detail=%q",
		event.Type, event.ContainerID, event.VersionID, event.Actor, event.Detail)

	if event.Type == EventVersionUploaded {
		return
	}
	if s.email == nil || !s.email.IsConfigured() || s.agencyEmail == "" {
		return
	}

	subject := fmt.Sprintf("[Proofdeck] %s on %s", event.Type, event.Title)
	body := fmt.Sprintf("%s\n\nActor: %s\nReview: %s\nVersion: %s\n",
		event.Detail, event.Actor, event.ContainerID, event.VersionID)

	go func() {
		if err := s.email.Send([]string{s.agencyEmail}, subject, body); err != nil {
			log.Printf("notify: send %s mail: %v", event.Type, err)
		}
	}()
}
