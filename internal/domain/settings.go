package domain

const (
	DefaultDownloadPath        = "GhibliImages"
	DefaultAPIBaseURL          = "https://generativelanguage.googleapis.com/v1beta/models/"
	DefaultConfidenceThreshold = 0.7
)

// Settings is the singleton record shared by the control surface and the pipeline.
type Settings struct {
	Enabled             bool    `yaml:"enabled" json:"enabled"`
	ImagesProcessed     int64   `yaml:"imagesProcessed" json:"imagesProcessed"`
	ImagesDownloaded    int64   `yaml:"imagesDownloaded" json:"imagesDownloaded"`
	DownloadPath        string  `yaml:"downloadPath" json:"downloadPath"`
	APIKey              string  `yaml:"apiKey" json:"apiKey"`
	APIBaseURL          string  `yaml:"apiBaseUrl" json:"apiBaseUrl"`
	ConfidenceThreshold float64 `yaml:"confidenceThreshold" json:"confidenceThreshold"`
}

// DefaultSettings returns the record written on first install.
func DefaultSettings() Settings {
	return Settings{
		Enabled:             true,
		DownloadPath:        DefaultDownloadPath,
		APIBaseURL:          DefaultAPIBaseURL,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// Stats holds the two counters shown on the main view.
type Stats struct {
	Processed  int64 `json:"processed"`
	Downloaded int64 `json:"downloaded"`
}

// Stats extracts the counters.
func (s Settings) Stats() Stats {
	return Stats{Processed: s.ImagesProcessed, Downloaded: s.ImagesDownloaded}
}

// SettingsPatch carries a settings-update; nil fields are left untouched.
type SettingsPatch struct {
	Enabled             *bool
	DownloadPath        *string
	APIKey              *string
	APIBaseURL          *string
	ConfidenceThreshold *float64
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.Enabled == nil && p.DownloadPath == nil && p.APIKey == nil &&
		p.APIBaseURL == nil && p.ConfidenceThreshold == nil
}

// Apply returns a copy of s with the patch fields applied.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.DownloadPath != nil {
		s.DownloadPath = *p.DownloadPath
	}
	if p.APIKey != nil {
		s.APIKey = *p.APIKey
	}
	if p.APIBaseURL != nil {
		s.APIBaseURL = *p.APIBaseURL
	}
	if p.ConfidenceThreshold != nil {
		s.ConfidenceThreshold = *p.ConfidenceThreshold
	}
	return s
}
