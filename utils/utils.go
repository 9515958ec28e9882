package utils

import (
	"math/rand"
	"path/filepath"
	"sync"
	"time"
)

const nameLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	nameRand = rand.New(rand.NewSource(time.Now().UnixNano()))
	nameMu   sync.Mutex
)

// GenerateUniqueFilename returns a random filename of the form
// prefix + n random characters + suffix. The generator is shared and
// mutex protected so concurrent chunk reads never collide on temp names.
func GenerateUniqueFilename(n int, prefix, suffix string) string {
	nameMu.Lock()
	defer nameMu.Unlock()
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = nameLetters[nameRand.Intn(len(nameLetters))]
	}
	return prefix + string(buf) + suffix
}

// TempFilename returns a unique filename inside dir.
func TempFilename(dir, prefix, suffix string) string {
	return filepath.Join(dir, GenerateUniqueFilename(8, prefix, suffix))
}
