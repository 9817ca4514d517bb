package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

type Kind string

const (
	KindClaim Kind = "claim"
	KindProve Kind = "prove"
)

var ErrInvalidEntry = errors.New("invalid journal entry")

// Entry is one mined claimOwnership or proveOwnership transaction.
type Entry struct {
	Kind        Kind
	ObjectHash  common.Hash
	Nullifier   *big.Int
	MerkleRoot  *big.Int
	Depth       int
	TxHash      common.Hash
	BlockNumber uint64
	CreatedAt   time.Time
}

// Store is the local journal of submitted claims.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS claims (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	object_hash TEXT NOT NULL,
	nullifier TEXT NOT NULL,
	merkle_root TEXT NOT NULL,
	depth INTEGER NOT NULL,
	tx_hash TEXT NOT NULL UNIQUE,
	block_number INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_claims_object ON claims(object_hash);
`

// Open creates or opens the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single writer keeps sqlite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends e. An entry whose transaction hash is already in the journal
// is ignored and reported as not inserted.
func (s *Store) Record(ctx context.Context, e Entry) (bool, error) {
	if e.Kind != KindClaim && e.Kind != KindProve {
		return false, fmt.Errorf("%w: kind %q", ErrInvalidEntry, e.Kind)
	}
	if e.Nullifier == nil || e.MerkleRoot == nil {
		return false, fmt.Errorf("%w: missing nullifier or merkle root", ErrInvalidEntry)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO claims
			(kind, object_hash, nullifier, merkle_root, depth, tx_hash, block_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.Kind), e.ObjectHash.Hex(), e.Nullifier.String(), e.MerkleRoot.String(),
		e.Depth, e.TxHash.Hex(), int64(e.BlockNumber), e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record %s: %w", e.Kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List returns every entry in insertion order.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, `SELECT kind, object_hash, nullifier, merkle_root, depth, tx_hash, block_number, created_at
		FROM claims ORDER BY id`)
}

func (s *Store) ByObject(ctx context.Context, objectHash common.Hash) ([]Entry, error) {
	return s.query(ctx, `SELECT kind, object_hash, nullifier, merkle_root, depth, tx_hash, block_number, created_at
		FROM claims WHERE object_hash = ? ORDER BY id`, objectHash.Hex())
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []Entry
	for rows.Next() {
		var (
			e                           Entry
			kind, object, null, root, h string
			block, created              int64
		)
		if err := rows.Scan(&kind, &object, &null, &root, &e.Depth, &h, &block, &created); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.ObjectHash = common.HexToHash(object)
		e.TxHash = common.HexToHash(h)
		e.BlockNumber = uint64(block)
		e.CreatedAt = time.UnixMilli(created)

		var ok bool
		if e.Nullifier, ok = new(big.Int).SetString(null, 10); !ok {
			return nil, fmt.Errorf("corrupt nullifier %q", null)
		}
		if e.MerkleRoot, ok = new(big.Int).SetString(root, 10); !ok {
			return nil, fmt.Errorf("corrupt merkle root %q", root)
		}
		ret = append(ret, e)
	}
	return ret, rows.Err()
}
