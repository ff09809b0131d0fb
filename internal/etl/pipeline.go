package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/lexredact/lexredact/internal/pii"
)

// Pipeline anonymizes document corpora in bulk. Every document in the
// input file is run through the engine with one shared replacement map, so
// an entity recurring across the corpus keeps a single token throughout.
type Pipeline struct {
	engine   *pii.Engine
	settings pii.Settings
	config   *Config
	logger   *zap.Logger
	stats    *ProcessingStats
	mu       sync.RWMutex
}

// NewPipeline creates a new corpus anonymization pipeline
func NewPipeline(engine *pii.Engine, settings pii.Settings, config *Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		engine:   engine,
		settings: settings,
		config:   config,
		logger:   logger,
		stats: &ProcessingStats{
			StartTime: time.Now(),
		},
	}
}

// ProcessFile anonymizes a corpus file (CSV, Parquet, or JSON lines) and
// writes the result to outputPath in the same format.
func (p *Pipeline) ProcessFile(ctx context.Context, inputPath, outputPath string) (*ProcessingResult, error) {
	p.logger.Info("Starting corpus anonymization",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
		zap.Int("batch_size", p.config.BatchSize))

	start := time.Now()
	result := &ProcessingResult{}

	format := DetectFileFormat(inputPath)
	p.logger.Info("Detected file format", zap.String("format", string(format)))

	p.resetStats()

	reader, err := newRecordReader(format, inputPath, p.logger)
	if err != nil {
		return result, err
	}
	defer reader.Close()

	writer, err := newRecordWriter(DetectFileFormat(outputPath), outputPath)
	if err != nil {
		return result, err
	}

	if err := p.processBatches(ctx, reader, writer, result); err != nil {
		writer.Close()
		return result, err
	}

	if err := writer.Close(); err != nil {
		return result, fmt.Errorf("failed to finalize output: %w", err)
	}

	result.Duration = time.Since(start)

	p.logger.Info("Corpus anonymization completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("total_entities", result.TotalEntities),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("detection_time", result.DetectionTime),
		zap.Duration("write_time", result.WriteTime))

	return result, nil
}

// processBatches reads, anonymizes, and writes the corpus in batches.
func (p *Pipeline) processBatches(ctx context.Context, reader recordReader, writer recordWriter, result *ProcessingResult) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := p.readBatch(reader)
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			break // End of file
		}

		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Text
		}

		detectStart := time.Now()
		results := p.engine.AnonymizeBatch(ctx, texts, p.settings)
		result.DetectionTime += time.Since(detectStart)

		writeStart := time.Now()
		for i, rec := range batch {
			rec.Text = results[i].AnonymizedText
			if err := writer.Write(rec); err != nil {
				p.logger.Warn("Failed to write record",
					zap.String("id", rec.ID),
					zap.Error(err))
				result.ProcessedFailed++
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			result.ProcessedOK++
			result.TotalEntities += int64(len(results[i].Entities))
		}
		result.WriteTime += time.Since(writeStart)
		result.TotalRecords += int64(len(batch))

		p.mu.Lock()
		p.stats.CurrentBatch++
		p.stats.EntitiesFound = result.TotalEntities
		p.mu.Unlock()

		// Progress reporting
		if p.config.ProgressReport > 0 && result.TotalRecords%int64(p.config.ProgressReport) == 0 {
			p.reportProgress(result)
		}
	}

	return nil
}

// readBatch pulls up to BatchSize valid records from the reader.
func (p *Pipeline) readBatch(reader recordReader) ([]*DocumentRecord, error) {
	var batch []*DocumentRecord
	for len(batch) < p.config.BatchSize {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.logger.Warn("Failed to read record", zap.Error(err))
			p.mu.Lock()
			p.stats.RecordsInvalid++
			p.mu.Unlock()
			continue
		}

		p.mu.Lock()
		p.stats.RecordsRead++
		p.mu.Unlock()

		if p.config.ValidateData && !p.validateRecord(rec) {
			p.mu.Lock()
			p.stats.RecordsInvalid++
			p.mu.Unlock()
			continue
		}

		p.mu.Lock()
		p.stats.RecordsValid++
		p.mu.Unlock()
		batch = append(batch, rec)
	}
	return batch, nil
}

// validateRecord checks that a record is worth processing.
func (p *Pipeline) validateRecord(rec *DocumentRecord) bool {
	if strings.TrimSpace(rec.Text) == "" {
		return false
	}
	if p.config.MaxTextLength > 0 && len(rec.Text) > p.config.MaxTextLength {
		p.logger.Warn("Record exceeds maximum text length",
			zap.String("id", rec.ID),
			zap.Int("length", len(rec.Text)))
		return false
	}
	return true
}

// reportProgress logs processing progress
func (p *Pipeline) reportProgress(result *ProcessingResult) {
	p.mu.RLock()
	elapsed := time.Since(p.stats.StartTime).Seconds()
	rate := float64(result.TotalRecords) / elapsed
	p.stats.ProcessingRate = rate
	p.mu.RUnlock()

	p.logger.Info("Processing progress",
		zap.Int64("records", result.TotalRecords),
		zap.Int64("entities", result.TotalEntities),
		zap.Float64("records_per_second", rate))
}

// resetStats clears per-run counters
func (p *Pipeline) resetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = &ProcessingStats{StartTime: time.Now()}
}

// Stats returns a snapshot of the current processing statistics
func (p *Pipeline) Stats() ProcessingStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return *p.stats
}

// recordReader yields one document per call until io.EOF.
type recordReader interface {
	Read() (*DocumentRecord, error)
	Close() error
}

// recordWriter persists anonymized documents.
type recordWriter interface {
	Write(*DocumentRecord) error
	Close() error
}

func newRecordReader(format FileFormat, path string, logger *zap.Logger) (recordReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	switch format {
	case FormatCSV:
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		// Skip header
		header, err := r.Read()
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		logger.Info("CSV header detected", zap.Strings("columns", header))
		return &csvReader{file: file, reader: r}, nil
	case FormatParquet:
		return &parquetReader{file: file, reader: parquet.NewReader(file)}, nil
	case FormatJSON:
		return &jsonReader{file: file, decoder: json.NewDecoder(file)}, nil
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

func newRecordWriter(format FileFormat, path string) (recordWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	switch format {
	case FormatCSV:
		w := csv.NewWriter(file)
		if err := w.Write([]string{"id", "text", "language"}); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
		return &csvWriter{file: file, writer: w}, nil
	case FormatParquet:
		return &parquetWriter{file: file, writer: parquet.NewWriter(file)}, nil
	case FormatJSON:
		return &jsonWriter{file: file, encoder: json.NewEncoder(file)}, nil
	default:
		file.Close()
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type csvReader struct {
	file   *os.File
	reader *csv.Reader
}

func (r *csvReader) Read() (*DocumentRecord, error) {
	row, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	if len(row) < 2 {
		return nil, fmt.Errorf("CSV record has %d fields, want at least 2", len(row))
	}
	rec := &DocumentRecord{
		ID:   strings.TrimSpace(row[0]),
		Text: row[1],
	}
	if len(row) > 2 {
		rec.Language = strings.TrimSpace(row[2])
	}
	return rec, nil
}

func (r *csvReader) Close() error { return r.file.Close() }

type csvWriter struct {
	file   *os.File
	writer *csv.Writer
}

func (w *csvWriter) Write(rec *DocumentRecord) error {
	return w.writer.Write([]string{rec.ID, rec.Text, rec.Language})
}

func (w *csvWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type parquetReader struct {
	file   *os.File
	reader *parquet.Reader
}

func (r *parquetReader) Read() (*DocumentRecord, error) {
	var rec DocumentRecord
	if err := r.reader.Read(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *parquetReader) Close() error {
	r.reader.Close()
	return r.file.Close()
}

type parquetWriter struct {
	file   *os.File
	writer *parquet.Writer
}

func (w *parquetWriter) Write(rec *DocumentRecord) error {
	return w.writer.Write(rec)
}

func (w *parquetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

type jsonReader struct {
	file    *os.File
	decoder *json.Decoder
}

func (r *jsonReader) Read() (*DocumentRecord, error) {
	var rec DocumentRecord
	if err := r.decoder.Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *jsonReader) Close() error { return r.file.Close() }

type jsonWriter struct {
	file    *os.File
	encoder *json.Encoder
}

func (w *jsonWriter) Write(rec *DocumentRecord) error {
	return w.encoder.Encode(rec)
}

func (w *jsonWriter) Close() error { return w.file.Close() }
