package mlog

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/crypto/ssh/terminal"
)

// ScreenWidth returns the current terminal width, falling back to 80 when
// stdout isn't a terminal. Adapted from surgeon/reposurgeon.go's
// screenwidth() and original_source's utils.num_cols().
func ScreenWidth() int {
	if !terminal.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	w, _, err := terminal.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Truncate cuts text to fit within columns display cells (accounting for
// wide runes via go-runewidth), appending "..." when it had to cut.
// Mirrors original_source's utils.truncate().
func Truncate(text string, columns int) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if columns <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= columns {
		return text
	}
	return runewidth.Truncate(text, columns-3, "") + "..."
}

// Page writes text through $PAGER if stdout is a terminal and a pager is on
// PATH, else it just writes the text directly. Adapted from
// surgeon/pager.go's ExternalPager and original_source's utils.page_text().
func Page(w io.Writer, text string) error {
	if f, ok := w.(*os.File); ok && terminal.IsTerminal(int(f.Fd())) {
		pagerName := os.Getenv("PAGER")
		if pagerName == "" {
			pagerName = "more"
		}
		if path, err := exec.LookPath(pagerName); err == nil {
			cmd := exec.Command(path)
			cmd.Stdout = f
			cmd.Stderr = os.Stderr
			stdin, err := cmd.StdinPipe()
			if err == nil {
				if err := cmd.Start(); err == nil {
					io.WriteString(stdin, text)
					stdin.Close()
					return cmd.Wait()
				}
			}
		}
	}
	_, err := io.WriteString(w, text)
	return err
}
