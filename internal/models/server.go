package models

// DiskStats represents disk usage of the storage root
type DiskStats struct {
	Path    string  `json:"path"`
	Total   uint64  `json:"total"`   // Total disk space in bytes
	Used    uint64  `json:"used"`    // Used disk space in bytes
	Free    uint64  `json:"free"`    // Free disk space in bytes
	Percent float64 `json:"percent"` // Disk usage percentage
}

// ProcessStats represents resource usage of the connector process
type ProcessStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	RSS           uint64  `json:"rss"` // Resident set size in bytes
	MemoryPercent float32 `json:"memory_percent"`
}

// ServerInfoResponse is returned by /server_info
type ServerInfoResponse struct {
	Uptime  float64      `json:"uptime"`
	Backend string       `json:"backend"`
	Disk    DiskStats    `json:"disk"`
	Process ProcessStats `json:"process"`
}

// ClientConfig is the configuration document the widget loads at start-up
// from /filemanager.config.json.
type ClientConfig struct {
	Options ClientOptions `json:"options"`
	API     ClientAPI     `json:"api"`
	Upload  ClientUpload  `json:"upload"`
	Images  ClientImages  `json:"images"`
	Edit    ClientEdit    `json:"edit"`
}

// ClientOptions holds general widget options
type ClientOptions struct {
	Culture      string   `json:"culture"`
	FileSorting  string   `json:"fileSorting"`
	ShowThumbs   bool     `json:"showThumbs"`
	Capabilities []string `json:"capabilities"`
}

// ClientAPI tells the widget where the connector lives
type ClientAPI struct {
	ConnectorURL string `json:"connectorUrl"`
}

// ClientUpload mirrors the upload restrictions enforced by the connector
type ClientUpload struct {
	Overwrite     bool `json:"overwrite"`
	ImagesOnly    bool `json:"imagesOnly"`
	FileSizeLimit int  `json:"fileSizeLimit"`
}

// ClientImages lists the extensions shown as images
type ClientImages struct {
	ImagesExt []string `json:"imagesExt"`
}

// ClientEdit lists the extensions the editor opens
type ClientEdit struct {
	Enabled bool     `json:"enabled"`
	EditExt []string `json:"editExt"`
}
