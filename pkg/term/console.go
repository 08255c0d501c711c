// Package term renders zerolog events for interactive use and provides
// the progress display of recursive runs.
package term

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aidarkhanov/nanoid"
	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// ConsoleWriter turns zerolog's JSON events into colored single-line
// messages on stderr.
type ConsoleWriter struct {
	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter() *ConsoleWriter {
	return &ConsoleWriter{}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal":
		fallthrough
	case "error":
		w.buffer.WriteString("[red]")
	case "warn":
		w.buffer.WriteString("[yellow]")
	case "debug":
		fallthrough
	case "trace":
		w.buffer.WriteString("[blue]")
	default:
		w.buffer.WriteString("[green]")
	}

	if project, ok := evt["project"]; ok {
		w.buffer.WriteString(project.(string) + ": ")
	}

	if evt["level"] == "error" {
		w.buffer.WriteString("Error: ")
	}

	msg := evt["message"].(string)

	if dir, ok := evt["dir"]; ok {
		// shorten the directory to keep lines readable
		relDir, err := filepath.Rel(".", dir.(string))
		if err == nil {
			msg = strings.ReplaceAll(msg, dir.(string), relDir)
		}
	}

	w.buffer.WriteString(msg)

	if errorDetails, ok := evt["error"]; ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(errorDetails.(string))
	}

	if os.Getenv("MAKEPROJECTS_DEBUG") != "" {
		w.buffer.WriteString("\n")
		for name, value := range evt {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, value))
		}
	}

	w.buffer.WriteString("[reset]\n")
	return colorstring.Fprint(os.Stderr, w.buffer.String())
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("MAKEPROJECTS_DEBUG") != "")
	}
}

// NewLogger builds the logger for one run. verbose raises the level to
// debug, quiet lowers it to errors only. Each run carries a short id so
// interleaved logs from nested invocations stay attributable.
func NewLogger(verbose, quiet bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if quiet {
		level = zerolog.ErrorLevel
	}

	return zerolog.New(NewConsoleWriter()).
		Level(level).
		With().
		Str("run", nanoid.New()).
		Logger()
}

// NewProgressBar returns a spinner-style bar for a recursive run. On CI
// the bar is invisible since the control codes just clutter the logs.
func NewProgressBar(desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") != "" {
		return progressbar.NewOptions64(-1, progressbar.OptionSetVisibility(false))
	}

	return progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
	)
}
