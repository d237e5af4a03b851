package notify

import (
	"context"
	"errors"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aatumaykin/habitflow/internal/habit"
	"github.com/aatumaykin/habitflow/internal/logger"
	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleHabit() habit.Habit {
	return habit.Habit{
		ID:          "h1",
		UserID:      "u1",
		Name:        "Run",
		Type:        habit.TypeGood,
		Goal:        30,
		MeasureType: habit.MeasureTime,
		Routine:     habit.Routine{habit.Monday},
	}
}

func sampleUser() habit.User {
	return habit.User{ID: "u1", Email: "alice@example.com", Username: "alice", TelegramChatID: 42, Active: true}
}

func TestFormat_Wording(t *testing.T) {
	tests := []struct {
		name    string
		kind    habit.Type
		measure habit.MeasureType
		goal    float64
		action  string
		target  string
	}{
		{"good time", habit.TypeGood, habit.MeasureTime, 30, "Time to practice your habit", "Target: 30 minutes"},
		{"bad amount", habit.TypeBad, habit.MeasureAmount, 3, "Time to avoid your habit", "Target: 3 times"},
		{"fractional goal", habit.TypeGood, habit.MeasureAmount, 2.5, "Time to practice your habit", "Target: 2.5 times"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := sampleHabit()
			h.Type = tt.kind
			h.MeasureType = tt.measure
			h.Goal = tt.goal

			msg, err := Format(h, sampleUser())
			require.NoError(t, err)

			assert.Equal(t, "Reminder: Run", msg.Subject)
			assert.Equal(t, "alice@example.com", msg.To.Email)
			assert.Equal(t, int64(42), msg.To.ChatID)
			assert.Contains(t, msg.HTML, "Hello alice,")
			assert.Contains(t, msg.HTML, tt.action+": <strong>Run</strong>")
			assert.Contains(t, msg.HTML, tt.target)
			assert.Contains(t, msg.HTML, "The Habit Flow Team")

			assert.Contains(t, msg.Text, "Hello alice,")
			assert.Contains(t, msg.Text, "*Run*")
			assert.Contains(t, msg.Text, tt.target)
			assert.NotContains(t, msg.Text, "<p>")
		})
	}
}

func TestFormat_PlainTextIsNotEscaped(t *testing.T) {
	h := sampleHabit()
	h.Name = "no_sugar"
	u := sampleUser()
	u.Username = "bob_x"

	msg, err := Format(h, u)
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "Hello bob_x,")
	assert.Contains(t, msg.Text, "Time to practice your habit: *no_sugar*")
	assert.NotContains(t, msg.Text, `\`)
}

func TestNewTextConverter_OptionsAreValid(t *testing.T) {
	var buf strings.Builder
	prev := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(prev)

	conv := newTextConverter()
	out, err := conv.ConvertString("<p>Go <strong>far</strong></p>")
	require.NoError(t, err)

	assert.Empty(t, buf.String())
	assert.Equal(t, "Go *far*", strings.TrimSpace(out))
}

func TestFormat_FallsBackToFirstName(t *testing.T) {
	u := sampleUser()
	u.Username = ""
	u.FirstName = "Alice"

	msg, err := Format(sampleHabit(), u)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "Hello Alice,")
}

func TestFormat_SanitizesHeaderValues(t *testing.T) {
	h := sampleHabit()
	h.Name = "Run\r\nBcc: victim@example.com"

	msg, err := Format(h, sampleUser())
	require.NoError(t, err)

	assert.NotContains(t, msg.Subject, "\r")
	assert.NotContains(t, msg.Subject, "\n")
	assert.Equal(t, "Reminder: Run Bcc: victim@example.com", msg.Subject)
}

func TestFormat_EscapesHTML(t *testing.T) {
	h := sampleHabit()
	h.Name = "<script>alert(1)</script>"

	msg, err := Format(h, sampleUser())
	require.NoError(t, err)
	assert.NotContains(t, msg.HTML, "<script>")
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("alice@example.com"))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("alice"))
	assert.False(t, ValidEmail("alice@example.com\r\nRCPT TO:<x@y.z>"))
	assert.False(t, ValidEmail("a b@example.com"))
}

func TestSMTPSender_Build(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{From: "bot@example.com", FromName: "Habit Flow"})
	s.now = func() time.Time { return time.Date(2026, 10, 14, 8, 45, 0, 0, time.UTC) }

	msg, err := Format(sampleHabit(), sampleUser())
	require.NoError(t, err)

	raw, err := s.build(msg)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, "Reminder: Run", parsed.Header.Get("Subject"))
	assert.Equal(t, `"Habit Flow" <bot@example.com>`, parsed.Header.Get("From"))
	assert.Equal(t, `"alice" <alice@example.com>`, parsed.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	mr := multipart.NewReader(parsed.Body, params["boundary"])
	var types []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		types = append(types, part.Header.Get("Content-Type"))
	}
	assert.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, types)
}

func TestSMTPSender_RejectsInvalidAddress(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 25, From: "bot@example.com"})
	s.dial = func(context.Context, string, string) (net.Conn, error) {
		t.Fatal("dial must not be called")
		return nil, nil
	}

	msg, err := Format(sampleHabit(), habit.User{ID: "u1", Username: "alice", Email: "not-an-address"})
	require.NoError(t, err)

	err = s.Send(context.Background(), msg)
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestSMTPSender_DialError(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "mail.invalid", Port: 587, From: "bot@example.com"})
	s.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}

	msg, err := Format(sampleHabit(), sampleUser())
	require.NoError(t, err)

	err = s.Send(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial mail.invalid:587")
}

// fakeBot returns errs in order, then err for every later call.
type fakeBot struct {
	mu     sync.Mutex
	params []telego.SendMessageParams
	errs   []error
	err    error
}

func (b *fakeBot) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params = append(b.params, *params)
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
		return &telego.Message{}, nil
	}
	if b.err != nil {
		return nil, b.err
	}
	return &telego.Message{}, nil
}

func parseError() error {
	return &telegoapi.Error{ErrorCode: 400, Description: "Bad Request: can't parse entities: Can't find end of the entity starting at byte offset 42"}
}

func TestTelegramSender_Send(t *testing.T) {
	bot := &fakeBot{}
	s := newTelegramSender(bot, 0, logger.Nop())

	msg, err := Format(sampleHabit(), sampleUser())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), msg))

	require.Len(t, bot.params, 1)
	assert.Equal(t, int64(42), bot.params[0].ChatID.ID)
	assert.Equal(t, telego.ModeHTML, bot.params[0].ParseMode)
	assert.Contains(t, bot.params[0].Text, "<b>Run</b>")
	assert.NotContains(t, bot.params[0].Text, "<p>")
}

func TestTelegramSender_EscapesMarkup(t *testing.T) {
	bot := &fakeBot{}
	s := newTelegramSender(bot, 0, logger.Nop())

	h := sampleHabit()
	h.Name = "2*3 <pushups> & no_sugar"
	msg, err := Format(h, sampleUser())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), msg))

	require.Len(t, bot.params, 1)
	assert.Contains(t, bot.params[0].Text, "<b>2*3 &lt;pushups&gt; &amp; no_sugar</b>")
}

func TestTelegramSender_ParseErrorFallsBackToPlainText(t *testing.T) {
	bot := &fakeBot{errs: []error{parseError(), nil}}
	s := newTelegramSender(bot, 0, logger.Nop())

	h := sampleHabit()
	h.Name = "2*3 pushups"
	msg, err := Format(h, sampleUser())
	require.NoError(t, err)
	require.NoError(t, s.Send(context.Background(), msg))

	require.Len(t, bot.params, 2)
	assert.Equal(t, telego.ModeHTML, bot.params[0].ParseMode)
	assert.Empty(t, bot.params[1].ParseMode)
	assert.Equal(t, msg.Text, bot.params[1].Text)
	assert.Contains(t, bot.params[1].Text, "*2*3 pushups*")
}

func TestTelegramSender_RejectedMessageDoesNotTripBreaker(t *testing.T) {
	bot := &fakeBot{err: parseError()}
	cb, _ := newTestBreaker(2, time.Minute)
	s := NewBreakerSender(newTelegramSender(bot, 0, logger.Nop()), cb, logger.Nop())

	msg, err := Format(sampleHabit(), sampleUser())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		err := s.Send(context.Background(), msg)
		assert.ErrorIs(t, err, ErrMessageRejected)
	}
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Len(t, bot.params, 10, "each send tries markup then plain text once")
}

func TestTelegramSender_TransportErrorTripsBreaker(t *testing.T) {
	bot := &fakeBot{err: errors.New("dial tcp: connection refused")}
	cb, _ := newTestBreaker(2, time.Minute)
	s := NewBreakerSender(newTelegramSender(bot, 0, logger.Nop()), cb, logger.Nop())

	msg, err := Format(sampleHabit(), sampleUser())
	require.NoError(t, err)

	require.Error(t, s.Send(context.Background(), msg))
	require.Error(t, s.Send(context.Background(), msg))
	assert.ErrorIs(t, s.Send(context.Background(), msg), ErrCircuitOpen)
	assert.Len(t, bot.params, 2, "no plain text retry for transport errors")
}

func TestTelegramSender_NoChatID(t *testing.T) {
	bot := &fakeBot{}
	s := newTelegramSender(bot, 5, logger.Nop())

	u := sampleUser()
	u.TelegramChatID = 0
	msg, err := Format(sampleHabit(), u)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Send(context.Background(), msg), ErrNoRecipient)
	assert.Empty(t, bot.params)
}

func TestNewSender(t *testing.T) {
	log := logger.Nop()

	s, err := NewSender(Config{Transport: "log"}, log)
	require.NoError(t, err)
	assert.Equal(t, "log", s.Name())

	s, err = NewSender(Config{Transport: "SMTP"}, log)
	require.NoError(t, err)
	assert.Equal(t, "smtp", s.Name())

	_, err = NewSender(Config{Transport: "telegram"}, log)
	assert.Error(t, err)

	_, err = NewSender(Config{Transport: "pigeon"}, log)
	assert.Error(t, err)
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

type countingObserver struct {
	mu           sync.Mutex
	sent, failed int
}

func (o *countingObserver) DispatchSent(string) {
	o.mu.Lock()
	o.sent++
	o.mu.Unlock()
}

func (o *countingObserver) DispatchFailed(string) {
	o.mu.Lock()
	o.failed++
	o.mu.Unlock()
}

func TestDispatcher_Dispatch(t *testing.T) {
	sender := &recordingSender{}
	obs := &countingObserver{}
	d := NewDispatcher(sender, logger.Nop(), WithDispatchObserver(obs), WithRateLimit(100), WithTimeout(time.Second))

	require.NoError(t, d.Dispatch(context.Background(), sampleHabit(), sampleUser()))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Reminder: Run", sender.sent[0].Subject)
	assert.Equal(t, 1, obs.sent)
	assert.Equal(t, 0, obs.failed)
}

func TestDispatcher_FailureIsWrapped(t *testing.T) {
	cause := errors.New("smtp down")
	sender := &recordingSender{err: cause}
	obs := &countingObserver{}
	d := NewDispatcher(sender, logger.Nop(), WithDispatchObserver(obs))

	err := d.Dispatch(context.Background(), sampleHabit(), sampleUser())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDispatch)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, obs.failed)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, logger.Nop(), WithRateLimit(1))

	require.NoError(t, d.Dispatch(context.Background(), sampleHabit(), sampleUser()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Dispatch(ctx, sampleHabit(), sampleUser())
	assert.ErrorIs(t, err, ErrDispatch)
	assert.Len(t, sender.sent, 1)
}
