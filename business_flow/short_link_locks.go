package businessflow

import "sync"

var (
	shortCodeGenMutex sync.Mutex
)

func lockShortCodeGen() {
	shortCodeGenMutex.Lock()
}

func unlockShortCodeGen() {
	shortCodeGenMutex.Unlock()
}
