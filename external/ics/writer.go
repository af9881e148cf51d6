package ics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"

	"github.com/ivanldv/sportcal/internal/platform/logging"
	"github.com/ivanldv/sportcal/internal/usecase"
)

const (
	calendarFileName = "SportsCalendar.ics"
	prodID           = "-//sportcal//consolidated sports calendar//ES"
	stampLayout      = "20060102T150405Z"

	// RFC 5545 content lines fold at 75 octets.
	foldWidth = 75
)

// Writer serializes calendar entries to a VCALENDAR file in the output
// directory. Writes go through a temp file plus rename so a crashed run
// never leaves a half-written calendar behind.
type Writer struct {
	dir    string
	logger *logging.Logger
	now    func() time.Time
}

func NewWriter(dir string, logger *logging.Logger) (*Writer, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{dir: dir, logger: logger, now: time.Now}, nil
}

func (w *Writer) Write(ctx context.Context, entries []usecase.CalendarEntry) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	writeLine := func(line string) {
		_, _ = buf.WriteString(foldLine(line))
		_, _ = buf.WriteString("\r\n")
	}

	writeLine("BEGIN:VCALENDAR")
	writeLine("VERSION:2.0")
	writeLine("PRODID:" + prodID)

	stamp := w.now().UTC().Format(stampLayout)
	for _, entry := range entries {
		writeLine("BEGIN:VEVENT")
		writeLine("UID:" + escapeText(entry.UID))
		writeLine("DTSTAMP:" + stamp)
		writeLine("DTSTART:" + entry.Start.UTC().Format(stampLayout))
		if entry.End.After(entry.Start) {
			writeLine("DTEND:" + entry.End.UTC().Format(stampLayout))
		}
		writeLine("SUMMARY:" + escapeText(entry.Title))
		if entry.Description != "" {
			writeLine("DESCRIPTION:" + escapeText(entry.Description))
		}
		if entry.Cancelled {
			writeLine("STATUS:CANCELLED")
		} else {
			writeLine("STATUS:CONFIRMED")
		}
		writeLine("BEGIN:VALARM")
		writeLine("ACTION:DISPLAY")
		writeLine("DESCRIPTION:" + escapeText(entry.Title))
		writeLine("TRIGGER:-PT15M")
		writeLine("END:VALARM")
		writeLine("END:VEVENT")
	}

	writeLine("END:VCALENDAR")

	if err := w.commit(buf.Bytes()); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "calendar written", "entries", len(entries), "path", filepath.Join(w.dir, calendarFileName))
	return nil
}

func (w *Writer) commit(data []byte) error {
	tmp, err := os.CreateTemp(w.dir, calendarFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp calendar: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp calendar: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(w.dir, calendarFileName)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace calendar: %w", err)
	}
	return nil
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(value string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return replacer.Replace(value)
}

// foldLine breaks long content lines with a CRLF plus single space
// continuation, splitting on byte boundaries that keep UTF-8 intact.
func foldLine(line string) string {
	if len(line) <= foldWidth {
		return line
	}

	var sb strings.Builder
	width := foldWidth
	for len(line) > width {
		cut := width
		for cut > 0 && !utf8Start(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = width
		}
		sb.WriteString(line[:cut])
		sb.WriteString("\r\n ")
		line = line[cut:]
		// Continuation lines lose one octet to the leading space.
		width = foldWidth - 1
	}
	sb.WriteString(line)
	return sb.String()
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
