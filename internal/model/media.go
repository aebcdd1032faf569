package model

// MediaItem is a timeline entry held by the remote media store
type MediaItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title,omitempty"`
	Era       string   `json:"era"`
	StartYear int      `json:"start_year,omitempty"`
	EndYear   int      `json:"end_year,omitempty"`
	Countries []string `json:"countries,omitempty"`
}

// Query builds the inference query for the item
func (m MediaItem) Query() InferenceQuery {
	return InferenceQuery{
		Era:       m.Era,
		StartYear: m.StartYear,
		EndYear:   m.EndYear,
		Title:     m.Title,
	}
}

// ItemStatus tracks a media item through a batch run
type ItemStatus string

const (
	StatusPending ItemStatus = "pending"
	StatusLoading ItemStatus = "loading"
	StatusDone    ItemStatus = "done"
	StatusError   ItemStatus = "error"
)

// Terminal reports whether the status is final for a batch run
func (s ItemStatus) Terminal() bool {
	return s == StatusDone || s == StatusError
}
