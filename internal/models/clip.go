package models

import "time"

// ClipMetadata is the sidecar record written next to every uploaded audio clip.
type ClipMetadata struct {
	Timestamp   string `json:"timestamp"`
	ClientIP    string `json:"client_ip"`
	Username    string `json:"username"`
	Subject     string `json:"subject"`
	GPSLat      string `json:"gps_lat"`
	GPSLon      string `json:"gps_lon"`
	DeviceInfo  string `json:"device_info"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
}

// PendingClip identifies one uploaded clip awaiting transcription.
type PendingClip struct {
	ID           string       `json:"id"`
	AudioPath    string       `json:"audio_path"`
	MetadataPath string       `json:"metadata_path"`
	Metadata     ClipMetadata `json:"metadata"`
}

// PipelineStatus is the worker's observable progress snapshot.
type PipelineStatus struct {
	CurrentFile    string `json:"current_file"`
	FilesProcessed int64  `json:"files_processed"`
	FilesPending   int    `json:"files_pending"`
	LastTranscript string `json:"last_transcript"`
}

// TranscriptInfo describes one finished transcript file on disk.
type TranscriptInfo struct {
	Path       string    `json:"path"`
	ModifiedAt time.Time `json:"modified_at"`
}
