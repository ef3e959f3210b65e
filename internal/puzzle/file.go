package puzzle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

type pack struct {
	Puzzles []Record `yaml:"puzzles"`
}

// FileSource serves puzzles from a YAML pack loaded once at startup.
type FileSource struct {
	records []Record
	pick    func(n int) int
}

// LoadFile reads a pack of the form `puzzles: [{id, fen, blunder, line, rating}]`.
// Every record is validated; one bad record rejects the pack.
func LoadFile(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read puzzle pack: %w", err)
	}
	return ParsePack(data)
}

func ParsePack(data []byte) (*FileSource, error) {
	var p pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse puzzle pack: %w", err)
	}
	if len(p.Puzzles) == 0 {
		return nil, fmt.Errorf("%w: pack has no puzzles", ErrMalformed)
	}
	for i, r := range p.Puzzles {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("puzzle %d (%s): %w", i, r.ID, err)
		}
		if r.ID == "" {
			p.Puzzles[i].ID = fmt.Sprintf("pack-%d", i+1)
		}
	}
	return &FileSource{records: p.Puzzles, pick: rand.IntN}, nil
}

func (s *FileSource) Fetch(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	return s.records[s.pick(len(s.records))].Clone(), nil
}

func (s *FileSource) Len() int { return len(s.records) }
