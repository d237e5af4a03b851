package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

// Recipient is where a reminder is delivered. Senders pick the address they support.
type Recipient struct {
	Name   string
	Email  string
	ChatID int64
}

// Message is one rendered reminder.
type Message struct {
	To      Recipient
	Subject string
	Text    string
	HTML    string
	// Markup is the body in the subset of HTML Telegram accepts.
	Markup string
}

var (
	headerUnsafe = re2.MustCompile(`[\x00-\x1f\x7f]+`)
	emailPattern = re2.MustCompile(`^[^\s@<>,;"]+@[^\s@<>,;"]+\.[^\s@<>,;"]+$`)
)

var reminderTemplate = template.Must(template.New("reminder").Parse(
	`<p>Hello {{.Name}},</p>` +
		`<p>Time to {{.Action}} your habit: <strong>{{.Habit}}</strong></p>` +
		`<p>Target: {{.Goal}} {{.Unit}}</p>` +
		`<p>Stay strong and consistent!</p>` +
		`<p>The Habit Flow Team</p>`))

var markupTemplate = template.Must(template.New("markup").Parse(
	"Hello {{.Name}},\n\n" +
		"Time to {{.Action}} your habit: <b>{{.Habit}}</b>\n\n" +
		"Target: {{.Goal}} {{.Unit}}\n\n" +
		"Stay strong and consistent!\n\n" +
		"The Habit Flow Team"))

var textConverter = newTextConverter()

// newTextConverter turns the mail HTML into the plain text part. The text is
// read as is, not as Markdown, so nothing is escaped and bold is a single
// asterisk pair.
func newTextConverter() *md.Converter {
	conv := md.NewConverter("", true, &md.Options{
		EmDelimiter:     "_",
		StrongDelimiter: "**",
		EscapeMode:      "disabled",
	})
	conv.AddRules(md.Rule{
		Filter: []string{"strong", "b"},
		Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
			trimmed := strings.TrimSpace(content)
			if trimmed == "" || selec.Parent().Is("strong, b") {
				return &trimmed
			}
			bold := md.AddSpaceIfNessesary(selec, "*"+trimmed+"*")
			return &bold
		},
	})
	return conv
}

type reminderData struct {
	Name   string
	Action string
	Habit  string
	Goal   string
	Unit   string
}

// ValidEmail reports whether addr looks like a deliverable mailbox.
func ValidEmail(addr string) bool {
	return emailPattern.MatchString(addr)
}

// Format renders the reminder for h addressed to u.
func Format(h habit.Habit, u habit.User) (Message, error) {
	data := reminderData{
		Name:   clean(u.DisplayName()),
		Action: actionWord(h.Type),
		Habit:  clean(h.Name),
		Goal:   strconv.FormatFloat(h.Goal, 'f', -1, 64),
		Unit:   unitWord(h.MeasureType),
	}

	var buf bytes.Buffer
	if err := reminderTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render reminder: %w", err)
	}
	html := buf.String()

	text, err := textConverter.ConvertString(html)
	if err != nil {
		return Message{}, fmt.Errorf("failed to render reminder text: %w", err)
	}

	buf.Reset()
	if err := markupTemplate.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("failed to render reminder markup: %w", err)
	}

	return Message{
		To: Recipient{
			Name:   data.Name,
			Email:  strings.TrimSpace(u.Email),
			ChatID: u.TelegramChatID,
		},
		Subject: "Reminder: " + data.Habit,
		Text:    strings.TrimSpace(text),
		HTML:    html,
		Markup:  buf.String(),
	}, nil
}

func actionWord(t habit.Type) string {
	if t == habit.TypeGood {
		return "practice"
	}
	return "avoid"
}

func unitWord(m habit.MeasureType) string {
	if m == habit.MeasureTime {
		return "minutes"
	}
	return "times"
}

// clean normalizes s to NFC and collapses control characters, so names are
// safe to place in mail headers.
func clean(s string) string {
	s = headerUnsafe.ReplaceAllString(norm.NFC.String(s), " ")
	return strings.TrimSpace(s)
}
