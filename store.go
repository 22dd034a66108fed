package excelgrid

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var gridsBucket = []byte("grids")

// Store persists grids between viewer sessions in a bbolt database. Each
// grid is stored under its name as formula text, so the parser is the single
// codec for both persistence and user input.
type Store struct {
	db *bolt.DB
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(gridsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type cellDoc struct {
	Formula string `json:"formula"`
	Color   string `json:"color,omitempty"`
}

type gridDoc struct {
	Name    string             `json:"name"`
	Height  int                `json:"height"`
	Width   int                `json:"width"`
	Columns []string           `json:"columns,omitempty"`
	Cells   map[string]cellDoc `json:"cells"`
	Refs    []string           `json:"refs"`
}

// SaveGrid stores a grid and every grid it references.
func (s *Store) SaveGrid(g *Grid) error {
	grids := map[string]*Grid{}
	collectGrids(g, grids)

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(gridsBucket)
		for name, grid := range grids {
			doc := encodeGrid(grid)
			raw, err := json.Marshal(doc)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(name), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadGrid restores the named grid, following and rebinding its cross-grid
// references.
func (s *Store) LoadGrid(name string) (*Grid, error) {
	loaded := map[string]*Grid{}
	var load func(name string) (*Grid, error)
	load = func(name string) (*Grid, error) {
		if g, seen := loaded[name]; seen {
			return g, nil
		}
		var doc gridDoc
		err := s.db.View(func(tx *bolt.Tx) error {
			raw := tx.Bucket(gridsBucket).Get([]byte(name))
			if raw == nil {
				return fmt.Errorf("store has no grid %q", name)
			}
			return json.Unmarshal(raw, &doc)
		})
		if err != nil {
			return nil, err
		}
		g, err := decodeGrid(&doc)
		if err != nil {
			return nil, err
		}
		loaded[name] = g
		for _, refName := range doc.Refs {
			ref, err := load(refName)
			if err != nil {
				return nil, err
			}
			g.refs[refName] = ref
		}
		return g, nil
	}
	return load(name)
}

// HasGrid reports whether the store holds a grid under name.
func (s *Store) HasGrid(name string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(gridsBucket).Get([]byte(name)) != nil
		return nil
	})
	return found, err
}

// ListGrids returns the names of all stored grids.
func (s *Store) ListGrids() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(gridsBucket).ForEach(func(k, v []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

func encodeGrid(g *Grid) *gridDoc {
	doc := &gridDoc{
		Name:    g.name,
		Height:  g.height,
		Width:   g.width,
		Columns: append([]string(nil), g.labels...),
		Cells:   make(map[string]cellDoc, len(g.cells)),
	}
	for pos, cell := range g.cells {
		doc.Cells[FormatAddress(pos)] = cellDoc{
			Formula: cell.Formula(g.name),
			Color:   cell.Color,
		}
	}
	for name := range g.refs {
		doc.Refs = append(doc.Refs, name)
	}
	return doc
}

func decodeGrid(doc *gridDoc) (*Grid, error) {
	g := Empty(doc.Name, doc.Height)
	g.width = doc.Width
	g.labels = append([]string(nil), doc.Columns...)
	for addr, cd := range doc.Cells {
		pos, err := ParseAddress(addr)
		if err != nil {
			return nil, err
		}
		expr, err := ParseLiteral(cd.Formula, g.name)
		if err != nil {
			return nil, err
		}
		cell := NewCell(expr)
		if cd.Color != "" {
			cell = cell.WithColor(cd.Color)
		}
		g.cells[pos] = cell
	}
	return g, nil
}
