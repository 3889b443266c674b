package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/ptgott/e2ekit/user"
)

var (
	userPrefix  = []byte("user/")
	sequenceKey = []byte("seq/user")
)

// BadgerDB implements UserLog on top of the BadgerDB embedded database. Keys
// are the prefix followed by a big-endian sequence number so that iteration
// order is append order. Badger locks its directory, so a second process
// opening the same store fails instead of overwriting records.
type BadgerDB struct {
	connection *badger.DB
	seq        *badger.Sequence
}

// NewBadgerDB opens, or creates, the store at dirPath. It is up to the
// caller to close the database with Close().
func NewBadgerDB(dirPath string) (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions(dirPath).WithLogger(nil))
}

// NewInMemoryBadgerDB opens a store that lives only as long as the process.
func NewInMemoryBadgerDB() (*BadgerDB, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func openBadger(opts badger.Options) (*BadgerDB, error) {
	// See: https://dgraph.io/docs/badger/get-started/#opening-a-database
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("can't open the db connection: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("can't lease a key sequence: %w", err)
	}

	return &BadgerDB{
		connection: db,
		seq:        seq,
	}, nil
}

// Append stores u under the next sequence number.
func (db *BadgerDB) Append(u user.RecordedTestUser) error {
	n, err := db.seq.Next()
	if err != nil {
		return fmt.Errorf("can't get the next key: %w", err)
	}
	val, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("can't encode the user: %w", err)
	}

	err = db.connection.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(n), val)
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// Users returns every stored user in append order.
func (db *BadgerDB) Users() ([]user.RecordedTestUser, error) {
	var users []user.RecordedTestUser

	// See: https://dgraph.io/docs/badger/get-started/#iterating-over-keys
	err := db.connection.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = userPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			// Values are only valid inside the transaction.
			err := it.Item().Value(func(val []byte) error {
				var u user.RecordedTestUser
				if err := json.Unmarshal(val, &u); err != nil {
					return err
				}
				users = append(users, u)
				return nil
			})
			if err != nil {
				return fmt.Errorf("can't decode the value of %q: %w", it.Item().Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Close releases the sequence and tears down the database connection.
func (db *BadgerDB) Close() error {
	if err := db.seq.Release(); err != nil {
		db.connection.Close()
		return fmt.Errorf("could not release the key sequence: %w", err)
	}
	if err := db.connection.Close(); err != nil {
		return fmt.Errorf("could not close the database: %w", err)
	}
	return nil
}

func userKey(n uint64) []byte {
	k := make([]byte, len(userPrefix)+8)
	copy(k, userPrefix)
	binary.BigEndian.PutUint64(k[len(userPrefix):], n)
	return k
}
