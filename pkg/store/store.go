// Package store abstracts the command-history database of marsh.
package store

import (
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNoMatchingCmd is the error returned when a Cmd or PrevCmd query
// completes with no result.
var ErrNoMatchingCmd = errors.New("no matching command line")

// Store is the interface satisfied by the history storage service. It
// carries exactly the lookups history expansion needs: AddCmd records
// lines, Cmd serves !N, and PrevCmd serves !! and !prefix.
type Store interface {
	NextCmdSeq() (int, error)
	AddCmd(text string) (int, error)
	Cmd(seq int) (string, error)
	PrevCmd(upto int, prefix string) (Cmd, error)
	Close() error
}

// Cmd is an entry in the command history.
type Cmd struct {
	Text string
	Seq  int
}

// Functions that initialize the database, one per bucket.
var initDB = map[string]func(tx *bolt.Tx) error{}

type dbStore struct {
	db *bolt.DB
}

// NewStore opens a Store backed by the bolt database at the named file,
// creating it if it does not exist.
func NewStore(dbname string) (Store, error) {
	db, err := bolt.Open(dbname, 0644, &bolt.Options{
		Timeout: time.Second,
	})
	if err != nil {
		return nil, err
	}
	st := &dbStore{db}
	err = db.Update(func(tx *bolt.Tx) error {
		for name, fn := range initDB {
			if err := fn(tx); err != nil {
				return errors.New(name + ": " + err.Error())
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func (s *dbStore) Close() error {
	return s.db.Close()
}
