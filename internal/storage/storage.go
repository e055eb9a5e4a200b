package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kunaldev/flipkart-scraper/internal/models"
)

// Formats accepted by NewFileStore.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatBoth = "both"
)

var csvHeader = []string{"title", "price", "rating", "image_url", "scraped_at"}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FileStore persists one file per run under a data directory, the durable
// output format the dashboard and report passes read back.
type FileStore struct {
	dataDir string
	format  string
}

func NewFileStore(dataDir, format string) (*FileStore, error) {
	switch format {
	case FormatCSV, FormatJSON, FormatBoth:
	default:
		return nil, fmt.Errorf("unsupported storage format: %q", format)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dataDir: dataDir, format: format}, nil
}

// SaveRun writes the run's records to one file per configured format and
// returns the written paths. Runs with zero records still produce a file;
// an empty result set is a valid outcome.
func (fs *FileStore) SaveRun(run *models.Run) ([]string, error) {
	base := fmt.Sprintf("flipkart_%s_%s",
		sanitizeTerm(run.SearchTerm),
		run.StartedAt.Format("20060102_150405"))

	var paths []string

	if fs.format == FormatCSV || fs.format == FormatBoth {
		path := filepath.Join(fs.dataDir, base+".csv")
		if err := fs.writeCSV(path, run.Products); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	if fs.format == FormatJSON || fs.format == FormatBoth {
		path := filepath.Join(fs.dataDir, base+".json")
		if err := fs.writeJSON(path, run); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func (fs *FileStore) writeCSV(path string, products []models.Product) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range products {
		record := []string{
			p.Title,
			p.Price,
			p.Rating,
			p.ImageURL,
			p.HarvestedAt.Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// writeJSON writes via a temp file and rename so readers never observe a
// half-written run.
func (fs *FileStore) writeJSON(path string, run *models.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return os.Rename(tmp, path)
}

// RunFile describes one saved result set.
type RunFile struct {
	Name     string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Rows     int       `json:"rows"`
}

// ListRuns returns the saved CSV result sets, newest first.
func (fs *FileStore) ListRuns() ([]RunFile, error) {
	entries, err := os.ReadDir(fs.dataDir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var files []RunFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		rows := 0
		if products, err := fs.ReadRun(entry.Name()); err == nil {
			rows = len(products)
		}
		files = append(files, RunFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Rows:     rows,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})
	return files, nil
}

// ReadRun loads one saved CSV result set back into product records. Field
// outcomes are reconstructed from the display sentinels.
func (fs *FileStore) ReadRun(filename string) ([]models.Product, error) {
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}
	if filepath.Base(filename) != filename {
		return nil, fmt.Errorf("invalid run filename: %q", filename)
	}

	f, err := os.Open(filepath.Join(fs.dataDir, filename))
	if err != nil {
		return nil, fmt.Errorf("open run file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	products := make([]models.Product, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(csvHeader) {
			continue
		}
		harvestedAt, _ := time.Parse(time.RFC3339, row[4])
		p := models.Product{
			Title:       row[0],
			Price:       row[1],
			Rating:      row[2],
			ImageURL:    row[3],
			HarvestedAt: harvestedAt,
			Outcome: map[string]bool{
				models.FieldTitle:    row[0] != "",
				models.FieldPrice:    row[1] != "" && row[1] != models.NoPrice,
				models.FieldRating:   row[2] != "" && row[2] != models.NoRating,
				models.FieldImageURL: row[3] != "" && row[3] != models.NoImage,
			},
		}
		products = append(products, p)
	}
	return products, nil
}

// ReadAll loads every saved result set, newest file first. Used by the
// cross-run search endpoint.
func (fs *FileStore) ReadAll() ([]models.Product, error) {
	files, err := fs.ListRuns()
	if err != nil {
		return nil, err
	}
	var all []models.Product
	for _, f := range files {
		products, err := fs.ReadRun(f.Name)
		if err != nil {
			continue
		}
		all = append(all, products...)
	}
	return all, nil
}

// Path resolves a run filename inside the data directory, for downloads.
func (fs *FileStore) Path(filename string) (string, error) {
	if filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid run filename: %q", filename)
	}
	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}
	path := filepath.Join(fs.dataDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeTerm(term string) string {
	term = strings.TrimSpace(strings.ToLower(term))
	term = strings.ReplaceAll(term, " ", "_")
	return unsafeFilenameChars.ReplaceAllString(term, "")
}
