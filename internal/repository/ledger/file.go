package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/oshokin/deadman-vault/internal/config"
	domain "github.com/oshokin/deadman-vault/internal/domain/vault"
)

// FileRepository persists the ledger to a JSON file on disk.
// Every commit rewrites the file through a temporary file and a rename,
// so a crash never leaves a half-written ledger behind.
type FileRepository struct {
	// path is the filesystem location of the JSON ledger.
	path string
	// doc is the cached ledger, nil until first read.
	doc *ledgerDocument
	// index maps a vault address to its position in doc.Vaults.
	index map[string]int
	// mu protects the cache and the ledger file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the ledger from disk. It returns ErrNotFound when the file does not exist.
func (r *FileRepository) Load(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.read(); err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Vaults: make([]*domain.Vault, 0, len(r.doc.Vaults)),
	}

	for i := range r.doc.Vaults {
		v, err := fromVaultDocument(&r.doc.Vaults[i])
		if err != nil {
			return nil, fmt.Errorf("decode ledger file: %w", err)
		}

		snapshot.Vaults = append(snapshot.Vaults, v)
	}

	if n := len(r.doc.Records); n > 0 {
		snapshot.LastSeq = r.doc.Records[n-1].Seq
	}

	return snapshot, nil
}

// Commit upserts the vault, appends its records and rewrites the file.
// On write failure the cached ledger is left as it was.
func (r *FileRepository) Commit(_ context.Context, v *domain.Vault, records []*domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.read(); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	next := &ledgerDocument{
		Vaults:  slices.Clone(r.doc.Vaults),
		Records: slices.Clone(r.doc.Records),
	}

	vaultDoc := toVaultDocument(v)

	position, exists := r.index[vaultDoc.Address]
	if exists {
		next.Vaults[position] = vaultDoc
	} else {
		position = len(next.Vaults)
		next.Vaults = append(next.Vaults, vaultDoc)
	}

	for _, record := range records {
		next.Records = append(next.Records, toRecordDocument(record))
	}

	if err := r.write(next); err != nil {
		return err
	}

	r.doc = next
	r.index[vaultDoc.Address] = position

	return nil
}

// Records returns up to limit records of a vault with Seq > afterSeq.
func (r *FileRepository) Records(
	_ context.Context,
	vault domain.Address,
	afterSeq uint64,
	limit int,
) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.read(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}

		return nil, err
	}

	var (
		address = vault.Hex()
		result  = make([]*domain.Record, 0)
	)

	limit = normalizeLimit(limit)

	for i := range r.doc.Records {
		doc := &r.doc.Records[i]
		if doc.Seq <= afterSeq || doc.Vault != address {
			continue
		}

		record, err := fromRecordDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("decode ledger file: %w", err)
		}

		result = append(result, record)

		if len(result) == limit {
			break
		}
	}

	return result, nil
}

// Close implements Repository. The file repository holds no open handles.
func (r *FileRepository) Close() error {
	return nil
}

// read loads the ledger file into the cache once.
// A missing file yields an empty cache and ErrNotFound.
func (r *FileRepository) read() error {
	if r.doc != nil {
		return nil
	}

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.doc = new(ledgerDocument)
			r.index = make(map[string]int)

			return ErrNotFound
		}

		return fmt.Errorf("read ledger file: %w", err)
	}

	var doc ledgerDocument
	if err = json.Unmarshal(contents, &doc); err != nil {
		return fmt.Errorf("decode ledger file: %w", err)
	}

	r.doc = &doc
	r.index = make(map[string]int, len(doc.Vaults))

	for i := range doc.Vaults {
		r.index[doc.Vaults[i].Address] = i
	}

	return nil
}

// write atomically replaces the ledger file.
func (r *FileRepository) write(doc *ledgerDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary ledger file: %w", err)
	}

	tmpPath := tmp.Name()

	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write ledger file: %w", err)
	}

	if err = tmp.Chmod(config.DefaultFilePermissions); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("chmod ledger file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close ledger file: %w", err)
	}

	if err = os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("replace ledger file: %w", err)
	}

	return nil
}
