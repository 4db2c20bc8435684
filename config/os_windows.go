//go:build windows

package config

import (
	"os"
	"strings"
	"unicode"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/term"
)

// CleanFileName drops characters Windows does not allow in file names.
// Trailing dots and spaces are removed as well since Explorer cannot handle
// them.
func CleanFileName(in string) string {
	const forbidden = `<>":/\|?*`
	out := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(forbidden+string(os.PathListSeparator), r) {
			return -1
		}
		return r
	}, in)
	if out = strings.TrimRight(strings.TrimSpace(out), ". "); out == "" {
		return "_bad_file_name_"
	}
	return out
}

// EnableColorOutput reports whether stream is a console which accepts VT100
// sequences, enabling their processing on Windows 10 and later.
func EnableColorOutput(stream *os.File) bool {
	if !term.IsTerminal(int(stream.Fd())) || windowsMajorVersion() < 10 {
		return false
	}

	const enableVirtualTerminalProcessing uint32 = 0x4

	h := windows.Handle(stream.Fd())
	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(h, mode|enableVirtualTerminalProcessing) == nil
}

func windowsMajorVersion() uint64 {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
	if err != nil {
		return 0
	}
	defer k.Close()

	v, _, err := k.GetIntegerValue("CurrentMajorVersionNumber")
	if err != nil {
		return 0
	}
	return v
}
