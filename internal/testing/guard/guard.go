package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CLEARLINE_TEST_MODE") == "" {
			_ = os.Setenv("CLEARLINE_TEST_MODE", "1")
		}
	})
}
