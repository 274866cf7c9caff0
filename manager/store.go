// manager/store.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/covey-uas/covey/log"
)

// Store persists the client table across manager restarts so that a
// crashed manager comes back knowing which ids were already handed out
// and id allocation stays monotonic.
type Store struct {
	db *sql.DB
	lg *log.Logger
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS clients (
    id           TEXT PRIMARY KEY,
    kind         TEXT NOT NULL,
    name         TEXT NOT NULL,
    descr        TEXT NOT NULL,
    capabilities TEXT NOT NULL,
    addr         TEXT NOT NULL,
    port         INTEGER NOT NULL,
    owner        TEXT NOT NULL,
    idx          INTEGER NOT NULL,
    last_seen    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`

// OpenStore opens (creating if needed) the client table database. With
// virgin set, any existing table is dropped first.
func OpenStore(path string, virgin bool, lg *log.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if virgin {
		if _, err := db.Exec(`DROP TABLE IF EXISTS clients; DROP TABLE IF EXISTS meta`); err != nil {
			db.Close()
			return nil, err
		}
	}
	if _, err := db.Exec(storeSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, lg: lg}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Load reads the saved client table and the next allocation index.
func (s *Store) Load() (map[string]*ClientRecord, int, error) {
	clients := make(map[string]*ClientRecord)

	rows, err := s.db.Query(`SELECT id, kind, name, descr, capabilities, addr, port, owner, idx, last_seen FROM clients`)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var c ClientRecord
		var caps, lastSeen string
		if err := rows.Scan(&c.ID, (*string)(&c.Kind), &c.Name, &c.Desc, &caps, &c.Addr, &c.Port,
			&c.Owner, &c.Index, &lastSeen); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal([]byte(caps), &c.Capabilities); err != nil {
			return nil, 0, fmt.Errorf("%s: capabilities: %w", c.ID, err)
		}
		if c.LastSeen, err = time.Parse(time.RFC3339Nano, lastSeen); err != nil {
			return nil, 0, fmt.Errorf("%s: last_seen: %w", c.ID, err)
		}
		clients[c.ID] = &c
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	nextIndex := 1
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = 'next_index'`).Scan(&nextIndex)
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, err
	}
	return clients, nextIndex, nil
}

// Save rewrites the whole table in one transaction. The table is small
// (one row per client) so this is simpler and no less safe than
// per-mutation statements.
func (s *Store) Save(clients map[string]*ClientRecord, nextIndex int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM clients`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO clients (id, kind, name, descr, capabilities, addr, port, owner, idx, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range clients {
		caps, err := json.Marshal(c.Capabilities)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(c.ID, string(c.Kind), c.Name, c.Desc, string(caps), c.Addr, c.Port,
			c.Owner, c.Index, c.LastSeen.Format(time.RFC3339Nano)); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('next_index', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, nextIndex); err != nil {
		return err
	}
	return tx.Commit()
}
