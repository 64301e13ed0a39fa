package directory

// Channel is a stream published by the directory.
type Channel struct {
	ID    string `json:"id"`    // Stable channel identifier
	Name  string `json:"name"`  // Display name
	Genre string `json:"genre"` // Genre key
	URL   string `json:"url"`   // Playback URL
}

// NowPlaying is the current program/track text of a channel.
type NowPlaying struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type channelList struct {
	Channels []Channel `json:"channels"`
}

type errorResponse struct {
	Error *Error `json:"error"`
}
