package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vlad-lazar/sokrati/internal/models"
	"github.com/vlad-lazar/sokrati/internal/notes"
)

// escapeMarkdown escapes the characters MarkdownV2 reserves.
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}

func moodEmoji(score float64) string {
	switch {
	case score >= 0.25:
		return "😊"
	case score <= -0.25:
		return "😞"
	default:
		return "😐"
	}
}

func describeSentiment(s *models.Sentiment) string {
	if s == nil {
		return "No mood detected."
	}
	return fmt.Sprintf("Mood %s score %.2f, strength %.2f", moodEmoji(s.Score), s.Score, s.Magnitude)
}

func formatSaved(note *models.Note) string {
	text := fmt.Sprintf("*Saved* `%s`\n", escapeMarkdown(note.ID))
	if len(note.Attachments) > 0 {
		text += escapeMarkdown(fmt.Sprintf("📎 %d attachment(s)", len(note.Attachments))) + "\n"
	}
	text += escapeMarkdown(describeSentiment(note.Sentiment))
	return text
}

func formatNoteList(list []*models.Note) string {
	var sb strings.Builder
	for _, n := range list {
		star := ""
		if n.IsFavourite {
			star = "⭐ "
		}
		sb.WriteString(fmt.Sprintf("%s*%s* `%s`\n", star, escapeMarkdown(n.CreatedAt.Format("Jan 02 15:04")), escapeMarkdown(n.ID)))
		if n.Text != "" {
			sb.WriteString(fmt.Sprintf("_%s_\n", escapeMarkdown(n.Text)))
		}
		if len(n.Attachments) > 0 {
			sb.WriteString(escapeMarkdown(fmt.Sprintf("📎 %d attachment(s)", len(n.Attachments))) + "\n")
		}
		if n.Sentiment != nil {
			sb.WriteString(moodEmoji(n.Sentiment.Score) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatMood(rng notes.Range, points []notes.SentimentPoint) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Your mood over the last %s:\n", rng))
	for _, p := range points {
		var when string
		switch p.Granularity {
		case notes.PerNote:
			when = p.Bucket.Format("15:04")
		case notes.PerMonth:
			when = p.Bucket.Format("Jan 2006")
		default:
			when = p.Bucket.Format("Jan 02")
		}
		sb.WriteString(fmt.Sprintf("%s %s %+.2f\n", when, moodEmoji(p.AverageScore), p.AverageScore))
	}
	return sb.String()
}

// userMessage keeps business-rule messages and hides dependency failures.
func userMessage(err error, fallback string) string {
	var svcErr *notes.Error
	if errors.As(err, &svcErr) && svcErr.Kind != notes.KindDependency && svcErr.Message != "" {
		return svcErr.Message
	}
	return fallback
}
