package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CAREWELL_TEST_MODE") == "" {
			_ = os.Setenv("CAREWELL_TEST_MODE", "1")
		}
	})
}
