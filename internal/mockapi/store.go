package mockapi

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"
)

const (
	tableUsers   = "users"
	tableUploads = "uploads"
)

var (
	ErrDuplicateEmail = errors.New("mockapi: email already registered")
	ErrNotFound       = errors.New("mockapi: record not found")
)

type User struct {
	ID      uint64    `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
}

type Upload struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	FileName    string    `json:"filename"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Created     time.Time `json:"created"`
}

// Store keeps users and upload metadata in memory. Uploaded bytes are
// counted and discarded.
type Store struct {
	db       *memdb.MemDB
	userSeq  atomic.Uint64
	imageSeq atomic.Uint64
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableUsers: {
				Name: tableUsers,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "ID"},
					},
					"email": {
						Name:    "email",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
					},
				},
			},
			tableUploads: {
				Name: tableUploads,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.UintFieldIndex{Field: "ID"},
					},
					"email": {
						Name:    "email",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
					},
				},
			},
		},
	}
}

func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("mockapi: init store: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateUser inserts a user, rejecting a second user with the same email.
func (s *Store) CreateUser(name, email string) (User, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableUsers, "email", strings.TrimSpace(email))
	if err != nil {
		return User{}, err
	}
	if existing != nil {
		return User{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}

	user := &User{
		ID:      s.userSeq.Add(1),
		Name:    strings.TrimSpace(name),
		Email:   strings.TrimSpace(email),
		Created: time.Now().UTC(),
	}
	if err := txn.Insert(tableUsers, user); err != nil {
		return User{}, err
	}
	txn.Commit()
	return *user, nil
}

func (s *Store) User(id uint64) (User, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableUsers, "id", id)
	if err != nil {
		return User{}, err
	}
	if raw == nil {
		return User{}, fmt.Errorf("%w: user id=%d", ErrNotFound, id)
	}
	return *raw.(*User), nil
}

func (s *Store) SaveUpload(upload Upload) (Upload, error) {
	txn := s.db.Txn(true)
	defer txn.Abort()

	upload.ID = s.imageSeq.Add(1)
	upload.Created = time.Now().UTC()
	record := upload
	if err := txn.Insert(tableUploads, &record); err != nil {
		return Upload{}, err
	}
	txn.Commit()
	return record, nil
}

// UploadsByEmail lists uploads for one submitter in insertion order.
func (s *Store) UploadsByEmail(email string) ([]Upload, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableUploads, "email", strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	var out []Upload
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, *raw.(*Upload))
	}
	return out, nil
}
