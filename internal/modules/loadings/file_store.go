package loadings

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aristath/factorlab/internal/domain"
	"github.com/rs/zerolog"
)

// FileStore keeps one CSV file per (store id, date key) under a directory.
// The first column is the instrument id, the remaining columns are the fields.
type FileStore struct {
	dir string
	log zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string, log zerolog.Logger) *FileStore {
	return &FileStore{
		dir:   dir,
		log:   log.With().Str("component", "file_store").Logger(),
		locks: make(map[string]*sync.Mutex),
	}
}

// Path returns the file a (store id, date key) pair is published under.
func (s *FileStore) Path(storeID, dateKey string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", storeID, dateKey))
}

func (s *FileStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Persist writes the table to a temporary file and renames it into place.
func (s *FileStore) Persist(ctx context.Context, storeID, dateKey string, table domain.FactorTable) error {
	if err := ValidateKey(storeID, dateKey); err != nil {
		return err
	}
	if err := validateTable(table); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := s.Path(storeID, dateKey)
	lock := s.keyLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := writeTableCSV(tmp, table); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}

	s.log.Debug().
		Str("store_id", storeID).
		Str("date_key", dateKey).
		Int("rows", table.Len()).
		Msg("Persisted factor table")

	return nil
}

// Load reads the table of (store id, date key); a missing file is an empty table.
func (s *FileStore) Load(ctx context.Context, storeID, dateKey string) (domain.FactorTable, error) {
	if err := ValidateKey(storeID, dateKey); err != nil {
		return domain.FactorTable{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.FactorTable{}, err
	}

	f, err := os.Open(s.Path(storeID, dateKey))
	if errors.Is(err, os.ErrNotExist) {
		return emptyTable(), nil
	}
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("failed to open factor table: %w", err)
	}
	defer f.Close()

	table, err := readTableCSV(f)
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("%s_%s: %w", storeID, dateKey, err)
	}
	return table, nil
}

func writeTableCSV(w io.Writer, table domain.FactorTable) error {
	cw := csv.NewWriter(w)

	header := append([]string{"id"}, table.Fields...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, id := range table.IDs() {
		record[0] = id
		for i, v := range table.Loadings[id] {
			record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %s: %w", id, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush factor table: %w", err)
	}
	return nil
}

func readTableCSV(r io.Reader) (domain.FactorTable, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return domain.FactorTable{}, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	if err != nil {
		return domain.FactorTable{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(header) < 2 || header[0] != "id" {
		return domain.FactorTable{}, fmt.Errorf("%w: unexpected header %v", ErrCorrupt, header)
	}

	table := domain.NewFactorTable(header[1:]...)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return domain.FactorTable{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}

		id := record[0]
		if _, dup := table.Loadings[id]; dup || id == "" {
			return domain.FactorTable{}, fmt.Errorf("%w: duplicate or empty id %q", ErrCorrupt, id)
		}
		row := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return domain.FactorTable{}, fmt.Errorf("%w: instrument %s: %v", ErrCorrupt, id, err)
			}
			row[i] = v
		}
		table.Loadings[id] = row
	}
	return table, nil
}
