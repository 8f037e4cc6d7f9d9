package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes an index generation.
type StatusInfo struct {
	Root        string    `json:"root"`
	IndexPath   string    `json:"index_path"`
	Generation  string    `json:"generation"`
	CreatedAt   time.Time `json:"created_at"`
	Documents   int       `json:"documents"`
	Terms       int       `json:"terms"`
	Size        int64     `json:"size"`
	MaxTokenLen int       `json:"max_token_length"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.IndexPath))

	_, _ = fmt.Fprintf(r.out, "  Root:         %s\n", info.Root)
	_, _ = fmt.Fprintf(r.out, "  Generation:   %s\n", info.Generation)
	if !info.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Built:        %s\n", formatTime(info.CreatedAt))
	}
	_, _ = fmt.Fprintf(r.out, "  Documents:    %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Terms:        %d\n", info.Terms)
	_, _ = fmt.Fprintf(r.out, "  Token limit:  %d\n", info.MaxTokenLen)
	_, err := fmt.Fprintf(r.out, "  Size:         %s\n", formatBytes(info.Size))
	return err
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// formatBytes formats bytes to human-readable format.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
