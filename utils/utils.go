package utils

import (
	"fmt"
	"strings"
)

// AddToLogMessage appends one entry to a per-request log.
func AddToLogMessage(logMessagesBuilder *strings.Builder, strToAdd string) {
	logMessagesBuilder.WriteString(strToAdd)
	logMessagesBuilder.WriteString(";")
	logMessagesBuilder.WriteString("\n")
}

// FlushLog prints the accumulated request log in one write so entries of
// concurrent requests do not interleave.
func FlushLog(logMessagesBuilder *strings.Builder) {
	if logMessagesBuilder.Len() == 0 {
		return
	}
	fmt.Print(logMessagesBuilder.String())
}
