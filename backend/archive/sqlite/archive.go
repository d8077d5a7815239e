// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Fantom-foundation/go-smt/backend/archive"
	"github.com/Fantom-foundation/go-smt/common"
	_ "github.com/mattn/go-sqlite3"
)

var (
	// See https://www.sqlite.org/pragma.html
	kConfigureConnection = []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536", // abs(N*1024) = 64MB
		"PRAGMA locking_mode = EXCLUSIVE",
	}
)

const (
	kCreateRootTable  = "CREATE TABLE IF NOT EXISTS root (version INT PRIMARY KEY, hash BLOB, node INT, nodes INT, key BLOB, value BLOB)"
	kAddRootStmt      = "INSERT INTO root(version, hash, node, nodes, key, value) VALUES (?,?,?,?,?,?)"
	kGetRootStmt      = "SELECT version, hash, node, nodes, key, value FROM root WHERE version = ?"
	kGetLatestRootStm = "SELECT version, hash, node, nodes, key, value FROM root ORDER BY version DESC LIMIT 1"
)

// Archive is an SQLite backed root history.
type Archive struct {
	db               *sql.DB
	addRootStmt      *sql.Stmt
	getRootStmt      *sql.Stmt
	getLatestRootStm *sql.Stmt
	addMutex         sync.Mutex
}

func NewArchive(file string) (*Archive, error) {
	db, err := sql.Open("sqlite3", "file:"+file)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite; %w", err)
	}
	// The exclusive locking mode is bound to a connection.
	db.SetMaxOpenConns(1)
	for _, cmd := range kConfigureConnection {
		if _, err := db.Exec(cmd); err != nil {
			return nil, errors.Join(fmt.Errorf("failed to configure connection with %s; %w", cmd, err), db.Close())
		}
	}
	if _, err := db.Exec(kCreateRootTable); err != nil {
		return nil, errors.Join(fmt.Errorf("failed to create root table; %w", err), db.Close())
	}

	addRoot, err := db.Prepare(kAddRootStmt)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	getRoot, err := db.Prepare(kGetRootStmt)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	getLatestRoot, err := db.Prepare(kGetLatestRootStm)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &Archive{
		db:               db,
		addRootStmt:      addRoot,
		getRootStmt:      getRoot,
		getLatestRootStm: getLatestRoot,
	}, nil
}

func (a *Archive) Add(record archive.Record) error {
	a.addMutex.Lock()
	defer a.addMutex.Unlock()

	latest, exists, err := a.GetLatest()
	if err != nil {
		return err
	}
	if err := archive.CheckOrder(latest.Version, exists, record.Version); err != nil {
		return err
	}
	_, err = a.addRootStmt.Exec(
		int64(record.Version),
		record.Root[:],
		int64(record.RootId),
		int64(record.NodesCount),
		record.Key[:],
		record.Value[:],
	)
	if err != nil {
		return fmt.Errorf("failed to add root of version %d; %w", record.Version, err)
	}
	return nil
}

func (a *Archive) Get(version uint64) (archive.Record, bool, error) {
	return scanRecord(a.getRootStmt.QueryRow(int64(version)))
}

func (a *Archive) GetLatest() (archive.Record, bool, error) {
	return scanRecord(a.getLatestRootStm.QueryRow())
}

func scanRecord(row *sql.Row) (archive.Record, bool, error) {
	var res archive.Record
	var version, node, nodes int64
	var hash, key, value []byte
	err := row.Scan(&version, &hash, &node, &nodes, &key, &value)
	if errors.Is(err, sql.ErrNoRows) {
		return res, false, nil
	}
	if err != nil {
		return res, false, err
	}
	if len(hash) != common.HashSize || len(key) != common.KeySize || len(value) != common.ValueSize {
		return res, false, fmt.Errorf("corrupted root record for version %d", version)
	}
	res.Version = uint64(version)
	res.RootId = uint64(node)
	res.NodesCount = uint64(nodes)
	copy(res.Root[:], hash)
	copy(res.Key[:], key)
	copy(res.Value[:], value)
	return res, true, nil
}

func (a *Archive) GetMemoryFootprint() *common.MemoryFootprint {
	return common.NewMemoryFootprint(unsafe.Sizeof(*a))
}

func (a *Archive) Flush() error {
	// Make sure all updates are transferred from the write-ahead log.
	_, err := a.db.Exec("PRAGMA wal_checkpoint(FULL)")
	return err
}

func (a *Archive) Close() error {
	return errors.Join(
		a.addRootStmt.Close(),
		a.getRootStmt.Close(),
		a.getLatestRootStm.Close(),
		a.db.Close(),
	)
}
