package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// CollectJSONArray decodes a top-level JSON array element by element. An
// empty body or a literal null yields an empty, non-nil slice. ctx is
// checked between elements so a large boundary payload can be abandoned.
func CollectJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	items := []T{}
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return items, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "json: read array start")
	}
	if tok == nil {
		return items, nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, eris.Errorf("json: want array, got %v", tok)
	}

	for i := 0; dec.More(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "json: cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return nil, eris.Wrapf(err, "json: element %d", i)
		}
		items = append(items, item)
	}

	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "json: read array end")
	}
	return items, nil
}
