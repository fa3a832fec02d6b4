package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var (
	initLogger sync.Once
	stdout     *log.Logger
)

// Logger returns the process-wide logger. All output is single-line JSON
// written to stdout so the collector can ship it as-is.
func Logger() *log.Logger {
	initLogger.Do(func() {
		stdout = log.New(os.Stdout, "", 0)
	})
	return stdout
}

// LogRequest serializes the given fields as one JSON line. Marshal failures
// are swallowed into a fixed error line rather than panicking the handler.
func LogRequest(fields map[string]any) {
	line, err := json.Marshal(fields)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"request log marshal failed"}`)
		return
	}
	Logger().Println(string(line))
}
