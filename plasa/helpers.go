package plasa

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"os"

	"github.com/sasha-s/go-deadlock"
	boom "github.com/tylertreat/BoomFilters"
)

func Touch(path string) error {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
	}
	return nil
}

// Permille returns part/total in thousandths, rounded down. A zero total yields zero.
func Permille(part, total int64) int64 {
	if total <= 0 {
		return 0
	}
	s := new(big.Rat)
	s.SetFrac64(part, total)
	s.Mul(s, big.NewRat(1000, 1))
	q := new(big.Int).Quo(s.Num(), s.Denom())
	return q.Int64()
}

//Contains checks if a slice contains a string
func Contains(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

func Sha256(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// MakeNewInverseBloomFilter returns a function that reports true the first time it
// sees a message. Older messages can be forgotten, so an old message may be
// reported as new again, but a new one is never reported as seen.
func MakeNewInverseBloomFilter(capacity uint) func(message interface{}) bool {
	ibf := boom.NewInverseBloomFilter(capacity)
	mutex := &deadlock.Mutex{}
	return func(message interface{}) bool {
		b := []byte(fmt.Sprint(message))
		mutex.Lock()
		defer mutex.Unlock()
		return !ibf.TestAndAdd(b)
	}
}
