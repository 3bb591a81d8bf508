package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("LABDASH_TEST_MODE") == "" {
			_ = os.Setenv("LABDASH_TEST_MODE", "1")
		}
	})
}
