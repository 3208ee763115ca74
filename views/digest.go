package views

import (
	jsoniter "github.com/json-iterator/go"

	"plasa/plasa"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Digest is the sha256 of a view's JSON encoding. Two views with equal digests
// render identically.
func Digest(view interface{}) (string, []byte, error) {
	b, err := json.Marshal(view)
	if err != nil {
		return "", nil, err
	}
	return plasa.Sha256(b), b, nil
}
