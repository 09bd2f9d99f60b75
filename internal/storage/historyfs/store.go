// Package historyfs stores one indented JSON file per symbol.
package historyfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobmcallan/pricehistory/internal/common"
	"github.com/bobmcallan/pricehistory/internal/interfaces"
	"github.com/bobmcallan/pricehistory/internal/models"
	"github.com/bobmcallan/pricehistory/internal/storage"
)

// Store provides file-based JSON storage for price histories.
type Store struct {
	dir    string
	logger *common.Logger
}

// NewHistoryStore creates a history file store rooted at path.
func NewHistoryStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, &storage.IOError{Op: "create", Location: path, Err: err}
	}
	logger.Info().Str("path", path).Msg("History file store opened")
	return &Store{dir: path, logger: logger}, nil
}

// Path returns the file used for symbol.
func (s *Store) Path(symbol string) string {
	return filepath.Join(s.dir, storage.SanitizeKey(symbol)+".json")
}

// LoadHistory reads the stored history for symbol; nil, nil when absent.
func (s *Store) LoadHistory(ctx context.Context, symbol string) (*models.History, error) {
	path := s.Path(symbol)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &storage.IOError{Op: "read", Location: path, Err: err}
	}

	h, err := decode(data)
	if err != nil {
		return nil, &storage.FormatError{Symbol: symbol, Location: path, Err: err}
	}
	if h.Symbol == "" {
		h.Symbol = symbol
	}
	if h.Symbol != symbol {
		return nil, &storage.FormatError{
			Symbol:   symbol,
			Location: path,
			Err:      fmt.Errorf("file holds symbol %q", h.Symbol),
		}
	}
	return h, nil
}

// SaveHistory overwrites the stored history for h.Symbol atomically.
func (s *Store) SaveHistory(ctx context.Context, h *models.History) error {
	if h.Symbol == "" {
		return fmt.Errorf("cannot save history without a symbol")
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history for %s: %w", h.Symbol, err)
	}
	data = append(data, '\n')

	path := s.Path(h.Symbol)
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return &storage.IOError{Op: "write", Location: path, Err: err}
	}
	s.logger.Debug().Str("symbol", h.Symbol).Int("records", len(h.Records)).Msg("History saved")
	return nil
}

// ListSymbols returns the symbols stored in the directory, sorted.
// File names are sanitized, so the symbol is read from each file.
func (s *Store) ListSymbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &storage.IOError{Op: "list", Location: s.dir, Err: err}
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		path := filepath.Join(s.dir, name)
		symbol, err := readSymbol(path)
		if err != nil {
			s.logger.Warn().Str("path", path).Err(err).Msg("Skipping unreadable history file")
			continue
		}
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func decode(data []byte) (*models.History, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("file is empty")
	}
	var h models.History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func readSymbol(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var head struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", err
	}
	if head.Symbol == "" {
		return strings.TrimSuffix(filepath.Base(path), ".json"), nil
	}
	return head.Symbol, nil
}

// Compile-time check
var _ interfaces.HistoryStorage = (*Store)(nil)
