package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/GenAmed/pointage/internal/model"
)

// SQLiteStore is a Queue backed by an on-device SQLite database. It is the
// backend of choice for terminals that accumulate months of local history;
// small installs can stay on the JSON FileStore.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultSQLitePath returns the default database location
// (~/.pointage/queue.db).
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pointage", "queue.db"), nil
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening queue database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("opening queue database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		worksite_id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		start_coordinates TEXT NOT NULL,
		end_coordinates TEXT,
		breaks TEXT NOT NULL DEFAULT '[]',
		comment TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending'
	)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("creating time_entries table: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List() ([]model.TimeEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, worksite_id, date, start_time, end_time,
		       start_coordinates, end_coordinates, breaks, comment, sync_status
		FROM time_entries ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("storage error listing entries: %w", err)
	}
	defer rows.Close()

	entries := []model.TimeEntry{}
	for rows.Next() {
		var e model.TimeEntry
		var endTime, endCoords, comment sql.NullString
		var startCoords, breaks string
		if err := rows.Scan(&e.ID, &e.UserID, &e.WorksiteID, &e.Date, &e.StartTime,
			&endTime, &startCoords, &endCoords, &breaks, &comment, &e.SyncStatus); err != nil {
			return nil, fmt.Errorf("storage error scanning entry: %w", err)
		}
		if endTime.Valid {
			e.EndTime = &endTime.String
		}
		if comment.Valid {
			e.Comment = &comment.String
		}
		if err := json.Unmarshal([]byte(startCoords), &e.StartCoordinates); err != nil {
			return nil, fmt.Errorf("storage error decoding coordinates of %s: %w", e.ID, err)
		}
		if endCoords.Valid {
			var c model.Coordinates
			if err := json.Unmarshal([]byte(endCoords.String), &c); err != nil {
				return nil, fmt.Errorf("storage error decoding coordinates of %s: %w", e.ID, err)
			}
			e.EndCoordinates = &c
		}
		if err := json.Unmarshal([]byte(breaks), &e.Breaks); err != nil {
			return nil, fmt.Errorf("storage error decoding breaks of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Upsert(entry model.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("rejecting invalid entry: %w", err)
	}
	startCoords, err := json.Marshal(entry.StartCoordinates)
	if err != nil {
		return fmt.Errorf("storage error encoding coordinates: %w", err)
	}
	var endCoords any
	if entry.EndCoordinates != nil {
		b, err := json.Marshal(entry.EndCoordinates)
		if err != nil {
			return fmt.Errorf("storage error encoding coordinates: %w", err)
		}
		endCoords = string(b)
	}
	breaks, err := json.Marshal(entry.Breaks)
	if err != nil {
		return fmt.Errorf("storage error encoding breaks: %w", err)
	}
	if entry.Breaks == nil {
		breaks = []byte("[]")
	}

	_, err = s.db.Exec(`
		INSERT INTO time_entries
			(id, user_id, worksite_id, date, start_time, end_time,
			 start_coordinates, end_coordinates, breaks, comment, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			worksite_id = excluded.worksite_id,
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			start_coordinates = excluded.start_coordinates,
			end_coordinates = excluded.end_coordinates,
			breaks = excluded.breaks,
			comment = excluded.comment,
			sync_status = excluded.sync_status`,
		entry.ID, entry.UserID, entry.WorksiteID, entry.Date, entry.StartTime,
		entry.EndTime, string(startCoords), endCoords, string(breaks),
		entry.Comment, string(entry.SyncStatus))
	if err != nil {
		return fmt.Errorf("storage error upserting %s: %w", entry.ID, err)
	}
	return nil
}
