package events

// Publisher delivers events to every observer attached to the audit's topic.
// Completion and failure additionally mark the topic eligible for cleanup
// once its last observer detaches.
type Publisher interface {
	PublishProgress(event ProgressEvent)
	PublishCompleted(event CompletedEvent)
	PublishFailed(event FailedEvent)
}
