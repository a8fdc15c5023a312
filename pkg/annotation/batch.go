package annotation

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed batch.schema.json
var batchSchemaJSON []byte

const batchSchemaURL = "https://annobox.local/batch.schema.json"

var (
	batchSchemaOnce sync.Once
	batchSchema     *jsonschema.Schema
	batchSchemaErr  error
)

func compiledBatchSchema() (*jsonschema.Schema, error) {
	batchSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		if err := c.AddResource(batchSchemaURL, bytes.NewReader(batchSchemaJSON)); err != nil {
			batchSchemaErr = fmt.Errorf("load batch schema: %w", err)
			return
		}
		batchSchema, batchSchemaErr = c.Compile(batchSchemaURL)
	})
	return batchSchema, batchSchemaErr
}

// Batch is an ordered list of items; an item's index is its position.
type Batch []ItemConfig

// LoadBatch reads a batch from a .json, .yaml or .yml file.
func LoadBatch(path string) (Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseBatchYAML(data)
	default:
		return ParseBatch(data)
	}
}

// ParseBatchYAML converts YAML to its JSON form and parses that, so both
// formats go through the same schema.
func ParseBatchYAML(data []byte) (Batch, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse batch yaml: %w", err)
	}
	js, err := codec.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert batch yaml: %w", err)
	}
	return ParseBatch(js)
}

// ParseBatch validates and decodes a JSON batch. Both a plain array and an
// object keyed by item index ({"0": {...}, "1": {...}}) are accepted; the
// latter is ordered by numeric index.
func ParseBatch(data []byte) (Batch, error) {
	var doc any
	if err := codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	if err := ValidateBatch(doc); err != nil {
		return nil, err
	}

	var raw []any
	switch v := doc.(type) {
	case []any:
		raw = v
	case map[string]any:
		keys := make([]string, 0, len(v))
		index := make(map[string]int, len(v))
		owner := make(map[int]string, len(v))
		for k := range v {
			n, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("parse batch: bad item index %q", k)
			}
			if prev, dup := owner[n]; dup {
				return nil, fmt.Errorf("parse batch: keys %q and %q both name item %d", prev, k, n)
			}
			owner[n] = k
			keys = append(keys, k)
			index[k] = n
		}
		sort.Slice(keys, func(i, j int) bool { return index[keys[i]] < index[keys[j]] })
		for _, k := range keys {
			raw = append(raw, v[k])
		}
	}

	batch := make(Batch, 0, len(raw))
	for i, item := range raw {
		b, err := codec.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		var cfg ItemConfig
		if err := codec.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := cfg.Normalize(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		batch = append(batch, cfg)
	}
	return batch, nil
}

// ValidateBatch checks a decoded JSON document against the batch schema.
func ValidateBatch(doc any) error {
	schema, err := compiledBatchSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("batch does not match schema: %w", err)
	}
	return nil
}
