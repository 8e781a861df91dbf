package models

// Properties holds the size and date attributes of a listed entry.
type Properties struct {
	DateCreated  string `json:"Date Created"`
	DateModified string `json:"Date Modified"`
	FileMTime    int64  `json:"filemtime"`
	Height       int    `json:"Height"`
	Width        int    `json:"Width"`
	Size         int64  `json:"Size"`
}

// FileInfo describes a single file or directory as the widget expects it.
type FileInfo struct {
	Path         string     `json:"Path"`
	Filename     string     `json:"Filename"`
	FileType     string     `json:"File Type"`
	Protected    int        `json:"Protected"`
	Preview      string     `json:"Preview"`
	Properties   Properties `json:"Properties"`
	Capabilities []string   `json:"Capabilities"`
	Envelope
}
