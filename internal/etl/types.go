package etl

import (
	"time"
)

// DocumentRecord is a single document from the input corpus. The same
// shape is written back out with Text replaced by its anonymized form.
type DocumentRecord struct {
	ID       string `csv:"id" parquet:"id" json:"id"`
	Text     string `csv:"text" parquet:"text" json:"text"`
	Language string `csv:"language" parquet:"language,optional" json:"language,omitempty"`
}

// ProcessingResult represents the result of processing a corpus
type ProcessingResult struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	TotalEntities   int64         `json:"total_entities"`
	Duration        time.Duration `json:"duration"`
	DetectionTime   time.Duration `json:"detection_time"`
	WriteTime       time.Duration `json:"write_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// Config contains ETL pipeline configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`           // 100
	MaxTextLength  int  `yaml:"max_text_length" mapstructure:"max_text_length"` // 1MB
	ValidateData   bool `yaml:"validate_data" mapstructure:"validate_data"`     // true
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"` // 1000
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		MaxTextLength:  1 << 20,
		ValidateData:   true,
		ProgressReport: 1000,
	}
}

// ProcessingStats tracks real-time processing statistics
type ProcessingStats struct {
	StartTime      time.Time `json:"start_time"`
	RecordsRead    int64     `json:"records_read"`
	RecordsValid   int64     `json:"records_valid"`
	RecordsInvalid int64     `json:"records_invalid"`
	EntitiesFound  int64     `json:"entities_found"`
	CurrentBatch   int64     `json:"current_batch"`
	ProcessingRate float64   `json:"processing_rate"` // records per second
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case len(filename) >= 4 && filename[len(filename)-4:] == ".csv":
		return FormatCSV
	case len(filename) >= 8 && filename[len(filename)-8:] == ".parquet":
		return FormatParquet
	case len(filename) >= 5 && filename[len(filename)-5:] == ".json":
		return FormatJSON
	case len(filename) >= 6 && filename[len(filename)-6:] == ".jsonl":
		return FormatJSON
	default:
		return FormatCSV // Default to CSV
	}
}
