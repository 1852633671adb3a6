package config

// Config is the single configuration file.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "3m").
// Credentials never live here; see Credentials.
type Config struct {
	Search   SearchConfig   `json:"search"`
	Provider ProviderConfig `json:"provider"`
	Channels ChannelsConfig `json:"channels"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Status   StatusConfig   `json:"status"`
}

// SearchConfig fixes the query shared by every venue.
//
// check_interval_ms is the legacy numeric form of check_interval; when both
// are set check_interval wins.
type SearchConfig struct {
	StartDate       string   `json:"start_date"`
	StayLengthDays  int      `json:"stay_length_days"`
	PartySize       int      `json:"party_size"`
	CheckInterval   string   `json:"check_interval,omitempty"`
	CheckIntervalMs int      `json:"check_interval_ms,omitempty"`
	CheckTimeout    string   `json:"check_timeout,omitempty"`
	Restaurants     []string `json:"restaurants"`
	// VenueUTCOffset renders dates in notifications, e.g. "-06:00".
	VenueUTCOffset string `json:"venue_utc_offset,omitempty"`
}

type ProviderConfig struct {
	BaseURL    string  `json:"base_url,omitempty"`
	Timeout    string  `json:"timeout,omitempty"`
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	Burst      int     `json:"burst,omitempty"`
	UserAgent  string  `json:"user_agent,omitempty"`
}

type ChannelsConfig struct {
	Push  PushConfig  `json:"push"`
	SMS   SMSConfig   `json:"sms"`
	Audio AudioConfig `json:"audio"`

	// SendTimeout bounds a single channel send.
	SendTimeout string `json:"send_timeout,omitempty"`
	HistorySize int    `json:"history_size,omitempty"`
}

// PushConfig selects the push backend: "pushover" (default) or "telegram".
type PushConfig struct {
	Enabled     bool   `json:"enabled"`
	Backend     string `json:"backend,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}

type SMSConfig struct {
	Enabled     bool   `json:"enabled"`
	Threshold   int    `json:"threshold,omitempty"`
	Pause       string `json:"pause,omitempty"`
	Cycle       string `json:"cycle,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
}

type AudioConfig struct {
	SoundEnabled bool      `json:"sound_enabled"`
	SoundFile    string    `json:"sound_file,omitempty"`
	SoundPause   string    `json:"sound_pause,omitempty"`
	PlayerCmd    []string  `json:"player_cmd,omitempty"`
	OverrideMute bool      `json:"override_mute"`
	UnmuteCmd    []string  `json:"unmute_cmd,omitempty"`
	CleanupDelay string    `json:"cleanup_delay,omitempty"`
	TempDir      string    `json:"temp_dir,omitempty"`
	TTS          TTSConfig `json:"tts"`
}

type TTSConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url,omitempty"`
	Model   string `json:"model,omitempty"`
	Voice   string `json:"voice,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects where detected openings are recorded.
//
// Driver values: "file" (default), "sqlite", "postgres", "none".
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type StatusConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Pprof         bool   `json:"pprof"`
	AllowInsecure bool   `json:"allow_insecure"`
}
