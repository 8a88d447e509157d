package httpapi

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// maxBodySize bounds request bodies to keep decoding cheap.
const maxBodySize = 1 << 20

// decodeObject reads the request body and walks its top-level object, calling
// fn for every key. Unknown keys must be skipped by fn via d.Skip.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}

	d := jx.DecodeBytes(body)
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	})
}

// decimalField decodes a JSON number (bare or string-encoded) into a decimal.
func decimalField(d *jx.Decoder) (decimal.Decimal, error) {
	n, err := d.Num()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(strings.Trim(n.String(), `"`))
}
