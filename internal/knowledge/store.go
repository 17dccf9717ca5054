package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Document is a piece of business context stored in the knowledge base
type Document struct {
	Topic     string    `json:"topic"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a BadgerDB-backed document store keyed by topic
type Store struct {
	db *badger.DB
}

// Config holds knowledge store configuration
type Config struct {
	Path     string // Badger data directory, ignored when InMemory
	InMemory bool
}

// NewStore opens the knowledge base at the configured path
func NewStore(config *Config) (*Store, error) {
	var opts badger.Options
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(expandPath(config.Path))
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &Store{db: db}, nil
}

func docKey(topic string) []byte {
	return []byte("doc:" + strings.ToLower(strings.TrimSpace(topic)))
}

// Put saves a document under its topic
func (s *Store) Put(ctx context.Context, doc *Document) error {
	if doc.Topic == "" {
		return fmt.Errorf("document topic is required")
	}
	doc.UpdatedAt = time.Now()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(doc.Topic), data)
	})
}

// Get retrieves a document by topic
func (s *Store) Get(ctx context.Context, topic string) (*Document, error) {
	var doc Document

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(topic))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("document not found: %s", topic)
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// Search returns documents whose topic, title or tags contain the query
// string (case-insensitive substring match).
func (s *Store) Search(ctx context.Context, query string) ([]*Document, error) {
	needle := strings.ToLower(strings.TrimSpace(query))

	var docs []*Document
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("doc:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var doc Document
				if err := json.Unmarshal(val, &doc); err != nil {
					return nil // Skip malformed entries
				}

				if matches(&doc, needle) {
					docs = append(docs, &doc)
				}
				return nil
			})
			if err != nil {
				continue
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return docs, nil
}

// List returns all stored documents
func (s *Store) List(ctx context.Context) ([]*Document, error) {
	return s.Search(ctx, "")
}

// Delete removes a document by topic
func (s *Store) Delete(ctx context.Context, topic string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(topic))
	})
}

// ContextFor returns concatenated content of documents relevant to the
// query, for embedding in an agent prompt. Empty when nothing matches.
func (s *Store) ContextFor(ctx context.Context, query string) (string, error) {
	needle := strings.ToLower(query)

	var parts []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("doc:")

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var doc Document
				if err := json.Unmarshal(val, &doc); err != nil {
					return nil
				}

				if relevantTo(&doc, needle) {
					parts = append(parts, fmt.Sprintf("%s:\n%s", doc.Title, doc.Content))
				}
				return nil
			})
			if err != nil {
				continue
			}
		}
		return nil
	})

	if err != nil {
		return "", err
	}

	return strings.Join(parts, "\n\n"), nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// matches reports whether a document matches a search needle
func matches(doc *Document, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Topic), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(doc.Title), needle) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// relevantTo reports whether a query mentions the document's topic or tags
func relevantTo(doc *Document, query string) bool {
	if strings.Contains(query, strings.ToLower(doc.Topic)) {
		return true
	}
	for _, tag := range doc.Tags {
		if tag != "" && strings.Contains(query, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
