package slackbot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/slack-go/slack"
)

// maxSummaryChars keeps the fallback message well under Slack's text limit.
const maxSummaryChars = 3500

type slackAPI interface {
	UploadFileV2(params slack.UploadFileV2Parameters) (*slack.FileSummary, error)
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts finished evaluation reports to a Slack channel.
type Notifier struct {
	api       slackAPI
	channelID string
}

func NewNotifier(botToken, channelID string) *Notifier {
	return &Notifier{api: slack.New(botToken), channelID: channelID}
}

// Report describes one finished evaluation for the channel.
type Report struct {
	Title        string
	FilePath     string
	SummaryLines []string
}

// PublishReport uploads the report file with the summary as its comment. When
// the upload fails, or there is no file, the summary is posted as a message.
func (n *Notifier) PublishReport(r Report) error {
	comment := formatComment(r)

	if r.FilePath != "" {
		err := n.upload(r, comment)
		if err == nil {
			log.Printf("slack report uploaded channel=%s file=%s", n.channelID, r.FilePath)
			return nil
		}
		log.Printf("slack upload failed channel=%s file=%s err=%v; posting summary instead", n.channelID, r.FilePath, err)
	}

	_, _, err := n.api.PostMessage(n.channelID, slack.MsgOptionText(comment, false))
	if err != nil {
		return fmt.Errorf("post summary: %w", err)
	}
	log.Printf("slack summary posted channel=%s", n.channelID)
	return nil
}

func (n *Notifier) upload(r Report, comment string) error {
	fi, err := os.Stat(r.FilePath)
	if err != nil {
		return err
	}
	if fi.Size() <= 0 {
		return fmt.Errorf("report file is empty path=%s", r.FilePath)
	}
	_, err = n.api.UploadFileV2(slack.UploadFileV2Parameters{
		File:           r.FilePath,
		FileSize:       int(fi.Size()),
		Filename:       filepath.Base(r.FilePath),
		Channel:        n.channelID,
		Title:          r.Title,
		InitialComment: comment,
	})
	return err
}

func formatComment(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", r.Title)
	if len(r.SummaryLines) > 0 {
		b.WriteString("```\n")
		b.WriteString(strings.Join(r.SummaryLines, "\n"))
		b.WriteString("\n```")
	}
	text := b.String()
	if len(text) > maxSummaryChars {
		text = text[:maxSummaryChars] + "\n...(truncated)"
	}
	return text
}
