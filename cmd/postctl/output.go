package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/maheshrc27/travelpost-bot/internal/models"
)

var (
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	labelColor = color.New(color.Bold)
	dimColor   = color.New(color.FgHiBlack)
)

func disableColor() {
	color.NoColor = true
}

func statusColor(status string) *color.Color {
	switch status {
	case models.PostStatusPosted:
		return okColor
	case models.PostStatusScheduled:
		return warnColor
	case models.PostStatusFailed:
		return errColor
	}
	return dimColor
}

func printPostTable(w io.Writer, posts []*models.Post) {
	if len(posts) == 0 {
		dimColor.Fprintln(w, "No posts.")
		return
	}
	for _, p := range posts {
		fmt.Fprintf(w, "%-14s %s  %s\n",
			p.ID,
			statusColor(p.Status).Sprintf("%-9s", p.Status),
			shorten(postTitle(p), 60))
	}
}

func printPost(w io.Writer, p *models.Post) {
	field := func(name, value string) {
		if value == "" {
			value = dimColor.Sprint("-")
		}
		fmt.Fprintf(w, "%s %s\n", labelColor.Sprintf("%-13s", name+":"), value)
	}

	field("ID", p.ID)
	field("Status", statusColor(p.Status).Sprint(p.Status))
	field("Title", p.Title)
	field("Image prompt", p.ImagePrompt)
	field("Image", p.ImageURL)
	field("Created", p.CreatedAt)
	field("Scheduled", p.ScheduledAt)
	field("Posted", p.PostedAt)
	field("Chat", p.ChatID)
	field("Message", p.MessageID)
	if p.Error != "" {
		field("Error", errColor.Sprint(p.Error))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.Text)
}

func postTitle(p *models.Post) string {
	if p.Title != "" {
		return p.Title
	}
	first, _, _ := strings.Cut(p.Text, "\n")
	return first
}

func shorten(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
