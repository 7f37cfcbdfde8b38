// package formatter renders the media library (and the scheduled posts board) as CSV, Markdown or JSON.
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/shared"
)

// Format is an export format.
type Format string

const (
	CSV      Format = "csv"
	Markdown Format = "md"
	JSON     Format = "json"
)

// ParseFormat accepts csv, md/markdown and json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "csv":
		return CSV, nil
	case "md", "markdown":
		return Markdown, nil
	case "json", "":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q (want csv, md or json)", shared.ErrInvalidFlag, s)
}

// Ext is the file extension for f, with the dot.
func (f Format) Ext() string { return "." + string(f) }

var mediaHeaders = []string{"Media ID", "Type", "Filename", "Size", "Status", "Uploaded", "Expires", "URL"}

// MediaToCSV writes one row per item.
func MediaToCSV(items []backend.MediaItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(mediaHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, it := range items {
		record := []string{
			it.ID,
			string(it.Type),
			it.Filename,
			strconv.FormatInt(it.Size, 10),
			it.Status,
			it.UploadedAt,
			it.ExpiresAt,
			it.URL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// MediaToMarkdown renders a titled table. Images link to their public URL inline.
func MediaToMarkdown(title string, items []backend.MediaItem) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)

	var images, videos int
	var size int64
	for _, it := range items {
		size += it.Size
		if it.Type == backend.MediaVideo {
			videos++
		} else {
			images++
		}
	}
	fmt.Fprintf(&buf, "**Items**: %d (%d images, %d videos)\n", len(items), images, videos)
	fmt.Fprintf(&buf, "**Total size**: %s\n\n", FormatSize(size))

	buf.WriteString("| # | Media ID | Type | Filename | Size | Status | Uploaded |\n")
	buf.WriteString("|---|---|---|---|---|---|---|\n")
	for i, it := range items {
		name := escapeCell(it.Filename)
		if it.URL != "" {
			name = fmt.Sprintf("[%s](%s)", name, it.URL)
		}
		fmt.Fprintf(&buf, "| %d | `%s` | %s | %s | %s | %s | %s |\n",
			i+1, it.ID, it.Type, name, FormatSize(it.Size), escapeCell(it.Status), escapeCell(it.UploadedAt))
	}
	return buf.Bytes(), nil
}

// MediaToJSON marshals items, indented when pretty.
func MediaToJSON(items []backend.MediaItem, pretty bool) ([]byte, error) {
	if items == nil {
		items = []backend.MediaItem{}
	}
	return marshal(items, pretty)
}

var scheduleHeaders = []string{"ID", "Type", "Status", "Scheduled", "Visibility", "Text", "Published URL", "Error"}

// ScheduledToCSV writes one row per scheduled post.
func ScheduledToCSV(posts []backend.ScheduledPost) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(scheduleHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, p := range posts {
		record := []string{p.ID, p.PostType, p.Status, p.ScheduledTime, p.Data.Visibility, p.Data.Text, p.PublishedPostURL, p.ErrorMessage}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportMedia renders items in format f.
func ExportMedia(items []backend.MediaItem, f Format, title string) ([]byte, error) {
	switch f {
	case CSV:
		return MediaToCSV(items)
	case Markdown:
		return MediaToMarkdown(title, items)
	case JSON:
		return MediaToJSON(items, true)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, f)
}

// WriteMediaExport writes items to path, creating parent directories. An empty path becomes media_export{ext}.
func WriteMediaExport(items []backend.MediaItem, f Format, path string) (string, error) {
	if path == "" {
		path = "media_export" + f.Ext()
	}

	data, err := ExportMedia(items, f, "Media library")
	if err != nil {
		return "", fmt.Errorf("failed to generate export: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// FormatSize renders bytes with binary units, e.g. 1.5 MB.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n || n < 2 {
		return s
	}
	return string(r[:n-1]) + "…"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func marshal(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
