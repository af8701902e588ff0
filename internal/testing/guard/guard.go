package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("THEA_TEST_MODE") == "" {
			_ = os.Setenv("THEA_TEST_MODE", "1")
		}
	})
}
