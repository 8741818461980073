package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CSERV_TEST_MODE") == "" {
			_ = os.Setenv("CSERV_TEST_MODE", "1")
		}
	})
}
