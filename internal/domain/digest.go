package domain

import "time"

// Subscriber is a confirmed digest recipient.
type Subscriber struct {
	Email    string
	Language Language
}

// DigestSelection is the set of items chosen for one scheduled send.
type DigestSelection struct {
	Date  time.Time
	Items []Item
}

// IDs lists the selected item identifiers in order.
func (s DigestSelection) IDs() []string {
	ids := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		ids = append(ids, it.ID)
	}
	return ids
}

// DigestEntry is one rendered row of a digest email.
type DigestEntry struct {
	Title     string
	URL       string
	Summary   string
	SummaryZh string
	SummaryEn string
}

// DigestMessage is a rendered digest email.
type DigestMessage struct {
	Subject string
	HTML    string
}

// SentLog records which items were mailed to whom on which date.
type SentLog struct {
	ID       string
	Email    string
	Date     time.Time
	ItemIDs  []string
	Language Language
}

// DigestReport summarizes a scheduled digest run.
type DigestReport struct {
	Pulled   int      `json:"pulled"`
	Selected int      `json:"selected"`
	Mailed   int      `json:"mailed"`
	Failed   int      `json:"failed"`
	Featured []string `json:"featured"`
}

// IngestStats describes one ingestion pass.
type IngestStats struct {
	Sites    int
	Fetched  int
	Stored   int
	Failures int
}

// StoreStats holds the public counters of the store.
type StoreStats struct {
	Items       int `json:"items"`
	Subscribers int `json:"subscribers"`
}
