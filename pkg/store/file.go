package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"xroute/pkg/types"
)

const DefaultFileName = ".xroute-transactions.json"

// FileStore keeps tracked transactions in one JSON file
type FileStore struct {
	filePath string
	mu       sync.Mutex
	txs      map[string]types.TrackedTransaction
}

// fileContents is the JSON layout of the file
type fileContents struct {
	Transactions map[string]types.TrackedTransaction `json:"transactions"`
}

// NewFileStore opens filePath, defaulting to a file in the home directory
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	fs := &FileStore{
		filePath: filePath,
		txs:      make(map[string]types.TrackedTransaction),
	}

	if err := fs.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return fs, nil
}

func (f *FileStore) load() error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return err
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return fmt.Errorf("failed to unmarshal transactions: %w", err)
	}
	if contents.Transactions != nil {
		f.txs = contents.Transactions
	}
	return nil
}

// save writes through a temporary file and renames it into place.
// Callers hold f.mu.
func (f *FileStore) save() error {
	data, err := json.MarshalIndent(fileContents{Transactions: f.txs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transactions: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := f.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write transactions: %w", err)
	}
	if err := os.Rename(tempFile, f.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *FileStore) SaveTransaction(ctx context.Context, tx types.TrackedTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.txs[tx.ID] = tx
	return f.save()
}

func (f *FileStore) LoadTransactions(ctx context.Context) ([]types.TrackedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]types.TrackedTransaction, 0, len(f.txs))
	for _, tx := range f.txs {
		out = append(out, tx)
	}
	return out, nil
}

// Path returns the storage file path
func (f *FileStore) Path() string {
	return f.filePath
}

func (f *FileStore) Close() error {
	return nil
}
