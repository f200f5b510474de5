package sqlite

import "database/sql"

// DB exposes the handle so tests can write rows the repos would refuse.
func (s *Store) DB() *sql.DB { return s.db }
