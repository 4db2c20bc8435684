package pokedex

import (
	"fmt"

	"go.uber.org/multierr"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"pdx/entity"
)

const schema = `
CREATE TABLE IF NOT EXISTS pokemon (
	number      INTEGER PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	image_path  TEXT NOT NULL DEFAULT '',
	html_url    TEXT NOT NULL DEFAULT '',
	img_url     TEXT NOT NULL DEFAULT ''
);
`

// Store is sqlite backed collection of records. It is not safe for concurrent
// use.
type Store struct {
	conn *sqlite.Conn
	path string
}

// Open opens (creating if necessary) database at path.
func Open(path string) (*Store, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open store (%s): %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to prepare store schema: %w", err), conn.Close())
	}
	return &Store{conn: conn, path: path}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) Path() string {
	return s.path
}

// Put inserts or updates records in single transaction. Record with the same
// number is replaced, the same name under different number is an error.
func (s *Store) Put(records ...Record) (err error) {
	defer sqlitex.Save(s.conn)(&err)

	for i := range records {
		r := &records[i]
		if err := r.validate(); err != nil {
			return err
		}
		err := sqlitex.Execute(s.conn, `
INSERT INTO pokemon (number, name, description, image_path, html_url, img_url)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(number) DO UPDATE SET
	name = excluded.name,
	description = excluded.description,
	image_path = excluded.image_path,
	html_url = excluded.html_url,
	img_url = excluded.img_url`,
			&sqlitex.ExecOptions{Args: []any{r.Number, r.Name, r.Description, r.ImagePath, r.HTMLURL, r.ImageURL}})
		if err != nil {
			return fmt.Errorf("unable to store %s: %w", r, err)
		}
	}
	return nil
}

// Clear removes all records.
func (s *Store) Clear() error {
	if err := sqlitex.Execute(s.conn, `DELETE FROM pokemon`, nil); err != nil {
		return fmt.Errorf("unable to clear store: %w", err)
	}
	return nil
}

// All returns records ordered by number.
func (s *Store) All() ([]Record, error) {
	var records []Record
	err := sqlitex.Execute(s.conn,
		`SELECT number, name, description, image_path, html_url, img_url FROM pokemon ORDER BY number`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, Record{
				Number:      stmt.ColumnInt(0),
				Name:        stmt.ColumnText(1),
				Description: stmt.ColumnText(2),
				ImagePath:   stmt.ColumnText(3),
				HTMLURL:     stmt.ColumnText(4),
				ImageURL:    stmt.ColumnText(5),
			})
			return nil
		}})
	if err != nil {
		return nil, fmt.Errorf("unable to read store: %w", err)
	}
	return records, nil
}

func (s *Store) Count() (int, error) {
	var n int
	err := sqlitex.Execute(s.conn, `SELECT count(*) FROM pokemon`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		}})
	if err != nil {
		return 0, fmt.Errorf("unable to count records: %w", err)
	}
	return n, nil
}

// Entities returns all stored records as entities in canonical order.
func (s *Store) Entities() ([]*entity.Entity, error) {
	records, err := s.All()
	if err != nil {
		return nil, err
	}
	entities := make([]*entity.Entity, 0, len(records))
	for i := range records {
		entities = append(entities, records[i].Entity())
	}
	return entities, nil
}
