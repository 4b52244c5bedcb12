package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hfzizz/nao-llm/internal/domain"
)

// ErrEmptyDataset is the cause recorded when a dataset holds no records.
var ErrEmptyDataset = errors.New("dataset has no records")

// rawRecord detects missing keys, which plain string fields would hide.
type rawRecord struct {
	Instruction *string        `json:"instruction"`
	Output      *domain.Output `json:"output"`
}

// ReadDataset parses a dataset file: a JSON array of {instruction, output} records.
// Every failure is a *domain.DatasetLoadError.
func ReadDataset(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, domain.NewDatasetLoadError(path, err)
	}
	records, err := ParseDataset(data)
	if err != nil {
		return nil, domain.NewDatasetLoadError(path, err)
	}
	return records, nil
}

// ParseDataset decodes dataset JSON and checks that every record has both keys.
func ParseDataset(data []byte) ([]domain.Record, error) {
	var raw []rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}

	records := make([]domain.Record, len(raw))
	for i, r := range raw {
		switch {
		case r.Instruction == nil:
			return nil, fmt.Errorf("record %d: missing instruction", i)
		case r.Output == nil:
			return nil, fmt.Errorf("record %d: missing output", i)
		}
		records[i] = domain.Record{Instruction: *r.Instruction, Output: *r.Output}
	}
	return records, nil
}
