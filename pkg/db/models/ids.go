package models

import "github.com/google/uuid"

// assignID gives a new row its primary key on the client so inserts behave
// the same on Postgres and SQLite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
