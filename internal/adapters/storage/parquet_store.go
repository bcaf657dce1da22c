package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/zatekoja/obstetric-locator/internal/domain/entities"
)

// ParquetStore reads and writes the canonical table and its trimmed variant.
type ParquetStore struct{}

// NewParquetStore creates a new parquet store
func NewParquetStore() *ParquetStore {
	return &ParquetStore{}
}

// WriteCanonical writes every column atomically (temp file then rename).
func (s *ParquetStore) WriteCanonical(ctx context.Context, path string, rows []entities.Establishment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeAtomic(path, func(tmp string) error {
		return parquet.WriteFile(tmp, rows)
	})
}

// WriteTrimmed writes the hot-path projection with zstd compression.
func (s *ParquetStore) WriteTrimmed(ctx context.Context, path string, rows []entities.Establishment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hot := make([]entities.HotRow, len(rows))
	for i := range rows {
		hot[i] = rows[i].Hot()
	}
	return writeAtomic(path, func(tmp string) error {
		return parquet.WriteFile(tmp, hot, parquet.Compression(&parquet.Zstd))
	})
}

// ReadCanonical reads every row of the canonical table.
func (s *ParquetStore) ReadCanonical(path string) ([]entities.Establishment, error) {
	rows, err := parquet.ReadFile[entities.Establishment](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// ReadTrimmed reads the trimmed table and widens it to the canonical shape.
func (s *ParquetStore) ReadTrimmed(path string) ([]entities.Establishment, error) {
	hot, err := parquet.ReadFile[entities.HotRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	rows := make([]entities.Establishment, len(hot))
	for i := range hot {
		rows[i] = hot[i].Establishment()
	}
	return rows, nil
}

func writeAtomic(path string, write func(tmp string) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := write(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
