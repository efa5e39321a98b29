package logger

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu       sync.Mutex
	level    = INFO
	output   = os.Stderr
	nowFunc  = time.Now
	levelTag = map[Level]string{
		DEBUG: "DEBUG",
		INFO:  "INFO",
		WARN:  "WARN",
		ERROR: "ERROR",
	}
)

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// logC writes a component-tagged line, optionally followed by sorted
// key=value fields.
func logC(l Level, component, msg string, fields map[string]interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if l < level {
		return
	}

	var sb strings.Builder
	sb.WriteString(nowFunc().Format("2006-01-02 15:04:05"))
	sb.WriteString(" [")
	sb.WriteString(levelTag[l])
	sb.WriteString("] [")
	sb.WriteString(component)
	sb.WriteString("] ")
	sb.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
		}
	}

	fmt.Fprintln(output, sb.String())
}

func DebugC(component, msg string) { logC(DEBUG, component, msg, nil) }
func InfoC(component, msg string)  { logC(INFO, component, msg, nil) }
func WarnC(component, msg string)  { logC(WARN, component, msg, nil) }
func ErrorC(component, msg string) { logC(ERROR, component, msg, nil) }

func DebugCF(component, msg string, fields map[string]interface{}) { logC(DEBUG, component, msg, fields) }
func InfoCF(component, msg string, fields map[string]interface{})  { logC(INFO, component, msg, fields) }
func WarnCF(component, msg string, fields map[string]interface{})  { logC(WARN, component, msg, fields) }
func ErrorCF(component, msg string, fields map[string]interface{}) { logC(ERROR, component, msg, fields) }
