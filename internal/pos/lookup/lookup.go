package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shop-pos/internal/apperr"
	"shop-pos/internal/pos/catalog"
)

// Fetcher performs the product-by-code round trip and returns the raw body.
type Fetcher interface {
	ProductByCode(ctx context.Context, code string) (json.RawMessage, error)
}

// Lookup resolves scanned or typed codes to products.
type Lookup struct {
	fetcher Fetcher
}

// New creates a Lookup.
func New(fetcher Fetcher) *Lookup {
	return &Lookup{fetcher: fetcher}
}

type productRecord struct {
	catalog.Product
	Error json.RawMessage `json:"error"`
}

// ByCode issues exactly one remote call. The store may answer with one record
// or a one-element list; a record without an id or with an error marker is
// reported as not found.
func (l *Lookup) ByCode(ctx context.Context, code string) (catalog.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return catalog.Product{}, apperr.Validation("item code is required")
	}

	raw, err := l.fetcher.ProductByCode(ctx, code)
	if err != nil {
		return catalog.Product{}, err
	}

	rec, err := normalize(raw)
	if err != nil {
		return catalog.Product{}, apperr.Transport(err, fmt.Sprintf("decode product %q", code))
	}
	if rec == nil || rec.ID == "" || hasErrorMarker(rec.Error) {
		return catalog.Product{}, apperr.Newf(apperr.CodeNotFound, "product not found: %s", code)
	}
	return rec.Product, nil
}

func normalize(raw json.RawMessage) (*productRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var list []productRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, nil
		}
		return &list[0], nil
	}

	var rec productRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func hasErrorMarker(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte("false")) || bytes.Equal(v, []byte(`""`)) {
		return false
	}
	return true
}
