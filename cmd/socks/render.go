package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

// writeJSON encodes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", title)
	if colorize {
		return ansiBlue + line + ansiReset
	}
	return line
}

func statusWord(success, colorize bool) string {
	if success {
		if colorize {
			return ansiGreen + "ok" + ansiReset
		}
		return "ok"
	}
	if colorize {
		return ansiRed + "fail" + ansiReset
	}
	return "fail"
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
