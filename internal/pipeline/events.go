package pipeline

// Event names are a client contract and must not change: the web client
// dispatches on them by string.
const (
	EventStatus        = "status"
	EventValidated     = "validated"
	EventResearched    = "researched"
	EventScripted      = "scripted"
	EventAudioProgress = "audio_progress"
	EventAudioComplete = "audio_complete"
	EventMerged        = "merged"
	EventComplete      = "complete"
	EventError         = "error"
)

// Event is one progress notification. Data marshals to the event's JSON
// payload.
type Event struct {
	Name string
	Data any
}

// Sink receives events in the order the pipeline produced them. It must not
// block: a slow consumer is the transport's problem, not the pipeline's.
type Sink func(Event)

// emit pushes e to sink when one is attached.
func emit(sink Sink, e Event) {
	if sink != nil {
		sink(e)
	}
}

// SpeakerSummary is the public view of a speaker: the voice assignment is
// withheld.
type SpeakerSummary struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
}

// StatusData is the payload of a status event. Model and Provider are set
// only on the initial "started" event; TotalLines only on
// "generating_audio".
type StatusData struct {
	Step       string `json:"step"`
	Message    string `json:"message"`
	Model      string `json:"model,omitempty"`
	Provider   string `json:"provider,omitempty"`
	TotalLines int    `json:"totalLines,omitempty"`
}

// ValidatedData is the payload of a validated event.
type ValidatedData struct {
	Step         string `json:"step"`
	CleanedTopic string `json:"cleanedTopic"`
	Message      string `json:"message"`
}

// ResearchedData is the payload of a researched event.
type ResearchedData struct {
	Step           string `json:"step"`
	KeyPointsCount int    `json:"keyPointsCount"`
	FactsCount     int    `json:"factsCount"`
	Message        string `json:"message"`
}

// ScriptedData is the payload of a scripted event.
type ScriptedData struct {
	Step      string           `json:"step"`
	Title     string           `json:"title"`
	Speakers  []SpeakerSummary `json:"speakers"`
	LineCount int              `json:"lineCount"`
	Message   string           `json:"message"`
}

// AudioProgressData is the payload of an audio_progress event. Current is
// 1-based and strictly increasing.
type AudioProgressData struct {
	Step    string `json:"step"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Speaker string `json:"speaker"`
	Emotion string `json:"emotion"`
	Message string `json:"message"`
}

// AudioCompleteData is the payload of an audio_complete event.
type AudioCompleteData struct {
	Step         string `json:"step"`
	SegmentCount int    `json:"segmentCount"`
	Message      string `json:"message"`
}

// MergedData is the payload of a merged event.
type MergedData struct {
	Step    string `json:"step"`
	Size    int    `json:"audioSize"`
	Message string `json:"message"`
}

// CompleteData is the payload of the terminal complete event. Exactly one of
// AudioURL and AudioBase64 is set.
type CompleteData struct {
	Step        string           `json:"step"`
	Title       string           `json:"title"`
	Speakers    []SpeakerSummary `json:"speakers"`
	LineCount   int              `json:"lineCount"`
	AudioSize   int              `json:"audioSize"`
	AudioURL    string           `json:"audioUrl,omitempty"`
	AudioBase64 string           `json:"audioBase64,omitempty"`
	Message     string           `json:"message"`
}

// ErrorData is the payload of the terminal error event.
type ErrorData struct {
	Code     string   `json:"code"`
	Error    string   `json:"error"`
	Reason   string   `json:"reason,omitempty"`
	Required []string `json:"required,omitempty"`
}
