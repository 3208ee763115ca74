package facts

import (
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"plasa/plasa"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type fixtureFact struct {
	Query
	Value  interface{} `json:"value"`
	Delete bool        `json:"delete,omitempty"`
}

type fixtureBlock struct {
	Time  plasa.Timestamp `json:"time"`
	Facts []fixtureFact   `json:"facts"`
}

// Fixture is the on-disk form of a Ledger.
type Fixture struct {
	Retention  int64          `json:"retention,omitempty"`
	LatestOnly []Query        `json:"latestOnly,omitempty"`
	Blocks     []fixtureBlock `json:"blocks"`
}

func LoadLedger(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeLedger(f)
}

func DecodeLedger(r io.Reader) (*Ledger, error) {
	var fx Fixture
	if err := json.NewDecoder(r).Decode(&fx); err != nil {
		return nil, errors.Wrap(err, "decoding ledger fixture")
	}
	l := NewLedger()
	l.SetRetention(fx.Retention)
	for _, q := range fx.LatestOnly {
		l.SetLatestOnly(q.Kind, q.Field)
	}
	for i, b := range fx.Blocks {
		writes := make([]Write, 0, len(b.Facts))
		for _, ff := range b.Facts {
			writes = append(writes, Write{Query: ff.Query, Value: ff.Value, Delete: ff.Delete})
		}
		if _, err := l.Commit(b.Time, writes...); err != nil {
			return nil, errors.Wrapf(err, "block %d", i)
		}
	}
	plasa.LogCLI(fmt.Sprintf("loaded ledger fixture with %d blocks", len(fx.Blocks)), 4)
	return l, nil
}
