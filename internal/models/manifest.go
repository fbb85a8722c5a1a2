package models

// Manifest is the per-run summary written after all channels were processed.
type Manifest struct {
	Date            string         `json:"date"`
	ChannelsScraped map[string]int `json:"channels_scraped"`
	Timestamp       string         `json:"timestamp"`
}

// Total returns the number of messages recorded across all channels.
func (m *Manifest) Total() int {
	total := 0
	for _, n := range m.ChannelsScraped {
		total += n
	}
	return total
}
