package processor

import (
	"fmt"
	"runtime"
	"strings"
)

// Guard runs fn and turns a panic into an ErrPanic clone carrying the stage
// and a trimmed stack trace.
func Guard(stage Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fullStack := make([]byte, 8096)
			n := runtime.Stack(fullStack, false)

			err = CloneError(
				ErrPanic,
				fmt.Sprintf("recovered from panic in %s: %v", stage, r),
				panicSource(r),
				map[string]any{
					"stage": string(stage),
					"stack": string(cleanStackTrace(fullStack[:n])),
				},
			)
		}
	}()
	return fn()
}

func panicSource(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

func cleanStackTrace(stack []byte) []byte {
	lines := strings.Split(string(stack), "\n")

	panicLineIndex := -1
	for i, line := range lines {
		if strings.Contains(line, "panic(") {
			panicLineIndex = i
			break
		}
	}

	// drop the panic() call line and its file reference
	if panicLineIndex >= 0 && panicLineIndex+2 < len(lines) {
		lines = lines[panicLineIndex+2:]
	}

	return []byte(strings.Join(lines, "\n"))
}
