package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/formatter"
)

var (
	_ list.Item = mediaItem{}
	_ list.Item = scheduledItem{}
)

// mediaItem wraps [backend.MediaItem] to implement [list.Item].
type mediaItem struct {
	item backend.MediaItem
}

func (i mediaItem) FilterValue() string { return i.item.Filename }
func (i mediaItem) Title() string {
	name := i.item.Filename
	if name == "" {
		name = i.item.ID
	}
	return fmt.Sprintf("%s %s", typeIcon(i.item.Type), name)
}
func (i mediaItem) Description() string {
	parts := []string{formatter.FormatSize(i.item.Size)}
	if i.item.Status != "" {
		parts = append(parts, i.item.Status)
	}
	if i.item.UploadedAt != "" {
		parts = append(parts, i.item.UploadedAt)
	}
	return strings.Join(parts, " • ")
}

// scheduledItem wraps [backend.ScheduledPost] to implement [list.Item].
type scheduledItem struct {
	post backend.ScheduledPost
}

func (i scheduledItem) FilterValue() string { return i.post.Data.Text }
func (i scheduledItem) Title() string {
	text := formatter.Truncate(i.post.Data.Text, 60)
	if text == "" {
		text = "(" + i.post.PostType + " post)"
	}
	return text
}
func (i scheduledItem) Description() string {
	when := i.post.ScheduledTimeFmt
	if when == "" {
		when = i.post.ScheduledTime
	}
	desc := fmt.Sprintf("%s • %s", i.post.Status, when)
	if i.post.TimeUntil != "" {
		desc = fmt.Sprintf("%s (%s)", desc, i.post.TimeUntil)
	}
	return desc
}

func typeIcon(t backend.MediaType) string {
	if t == backend.MediaVideo {
		return "▶"
	}
	return "▣"
}

func mediaItems(items []backend.MediaItem) []list.Item {
	out := make([]list.Item, len(items))
	for i, it := range items {
		out[i] = mediaItem{item: it}
	}
	return out
}

func scheduledItems(posts []backend.ScheduledPost) []list.Item {
	out := make([]list.Item, len(posts))
	for i, p := range posts {
		out[i] = scheduledItem{post: p}
	}
	return out
}
