package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/the-savings-must-flow/internal/model"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// recordDate accepts RFC 3339 timestamps and plain dates, quoted or not.
type recordDate struct {
	time.Time
}

func (d *recordDate) UnmarshalYAML(value *yaml.Node) error {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value.Value); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("line %d: invalid date %q", value.Line, value.Value)
}

// record is one transaction in a YAML or JSON import file. Records are
// expenses unless is_expense is false; the sign of amount is ignored.
type record struct {
	Date        recordDate `yaml:"date"`
	IsExpense   *bool      `yaml:"is_expense"`
	ID          string     `yaml:"id"`
	Category    string     `yaml:"category"`
	Description string     `yaml:"description"`
	Amount      float64    `yaml:"amount"`
}

// RecordParser reads YAML or JSON transaction lists, either a bare sequence
// or a mapping with a "transactions" key.
type RecordParser struct {
	userID string
}

// NewRecordParser creates a parser assigning transactions to userID.
func NewRecordParser(userID string) *RecordParser {
	return &RecordParser{userID: userID}
}

// ParseFile implements Parser.
func (p *RecordParser) ParseFile(ctx context.Context, reader io.Reader) ([]*model.Transaction, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(reader).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}

	var records []record
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
	case yaml.MappingNode:
		var file struct {
			Transactions []record `yaml:"transactions"`
		}
		if err := root.Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		records = file.Transactions
	default:
		return nil, fmt.Errorf("expected a list of transactions, got %s", kindName(root.Kind))
	}

	seen := make(map[string]int)
	txns := make([]*model.Transaction, 0, len(records))
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txn, err := p.convert(rec, seen)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func (p *RecordParser) convert(rec record, seen map[string]int) (*model.Transaction, error) {
	if rec.Date.IsZero() {
		return nil, errors.New("date is required")
	}
	if rec.Amount == 0 {
		return nil, errors.New("amount is required")
	}

	signed := math.Abs(rec.Amount)
	if rec.IsExpense == nil || *rec.IsExpense {
		signed = -signed
	}

	id := rec.ID
	if id == "" {
		// Identical records in one file are distinct purchases.
		parts := []string{
			p.userID,
			rec.Date.UTC().Format(time.RFC3339Nano),
			strconv.FormatFloat(signed, 'f', 2, 64),
			rec.Category,
			rec.Description,
		}
		key := fmt.Sprint(parts)
		parts = append(parts, strconv.Itoa(seen[key]))
		seen[key]++
		id = transactionID("rec", parts...)
	}

	return newTransaction(id, p.userID, signed, model.Transaction{
		Date:        rec.Date.Time,
		Category:    rec.Category,
		Description: rec.Description,
	}), nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.ScalarNode:
		return "a scalar"
	case yaml.AliasNode:
		return "an alias"
	default:
		return "an empty document"
	}
}
