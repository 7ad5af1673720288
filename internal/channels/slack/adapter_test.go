package slack

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/haasonsaas/relay/internal/channels"
	"github.com/haasonsaas/relay/pkg/models"
)

type fakeAPI struct {
	authErr   error
	postErr   error
	postedTo  []string
	botUserID string
}

func (f *fakeAPI) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slack.AuthTestResponse{UserID: f.botUserID}, nil
}

func (f *fakeAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if f.postErr != nil {
		return "", "", f.postErr
	}
	f.postedTo = append(f.postedTo, channelID)
	return channelID, "123.456", nil
}

func newTestAdapter(t *testing.T, api *fakeAPI) *Adapter {
	t.Helper()
	a, err := NewAdapter(Config{
		BotToken: "xoxb-test",
		AppToken: "xapp-test",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	a.api = api
	a.events = make(chan socketmode.Event, 8)
	return a
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"missing bot token", Config{AppToken: "xapp-x"}, true},
		{"missing app token", Config{BotToken: "xoxb-x"}, true},
		{"valid", Config{BotToken: "xoxb-x", AppToken: "xapp-x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	cfg := Config{BotToken: "xoxb-x", AppToken: "xapp-x"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.RateLimit != 1 || cfg.RateBurst != 5 {
		t.Errorf("defaults = %v/%v, want 1/5", cfg.RateLimit, cfg.RateBurst)
	}
}

func TestStartStop(t *testing.T) {
	api := &fakeAPI{botUserID: "UBOT"}
	a := newTestAdapter(t, api)

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !a.Status().Connected {
		t.Error("adapter should be connected after Start")
	}
	if err := a.Start(ctx); err == nil {
		t.Error("second Start should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if a.Status().Connected {
		t.Error("adapter should be disconnected after Stop")
	}
	if _, ok := <-a.Messages(); ok {
		t.Error("messages channel should be closed after Stop")
	}
}

func TestStartAuthFailure(t *testing.T) {
	api := &fakeAPI{authErr: channels.ErrAuthentication("invalid token", nil)}
	a := newTestAdapter(t, api)

	err := a.Start(context.Background())
	if err == nil {
		t.Fatal("Start should fail when auth fails")
	}
	if channels.GetErrorCode(err) != channels.ErrCodeAuthentication {
		t.Errorf("error code = %v, want %v", channels.GetErrorCode(err), channels.ErrCodeAuthentication)
	}
}

func TestSendUsesChatID(t *testing.T) {
	api := &fakeAPI{botUserID: "UBOT"}
	a := newTestAdapter(t, api)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	msg := &models.Message{ChatID: "C12345", Content: "pong"}
	if err := a.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(api.postedTo) != 1 || api.postedTo[0] != "C12345" {
		t.Errorf("posted to %v, want [C12345]", api.postedTo)
	}
}

func TestSendValidation(t *testing.T) {
	api := &fakeAPI{botUserID: "UBOT"}
	a := newTestAdapter(t, api)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	err := a.Send(context.Background(), &models.Message{Content: "no chat id"})
	if channels.GetErrorCode(err) != channels.ErrCodeInvalidInput {
		t.Errorf("error code = %v, want %v", channels.GetErrorCode(err), channels.ErrCodeInvalidInput)
	}

	api.postErr = channels.ErrRateLimit("slow down", nil)
	err = a.Send(context.Background(), &models.Message{ChatID: "C1", Content: "x"})
	if channels.GetErrorCode(err) != channels.ErrCodeInternal {
		t.Errorf("error code = %v, want %v", channels.GetErrorCode(err), channels.ErrCodeInternal)
	}
}

func TestInboundMessageConversion(t *testing.T) {
	api := &fakeAPI{botUserID: "UBOT"}
	a := newTestAdapter(t, api)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	a.events <- socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Data: &slackevents.MessageEvent{
					Type:      "message",
					User:      "U777",
					Text:      "<@UBOT> !ping",
					Channel:   "D555",
					TimeStamp: "1700000000.000100",
				},
			},
		},
	}

	select {
	case msg := <-a.Messages():
		if msg.Channel != models.ChannelSlack {
			t.Errorf("channel = %v, want slack", msg.Channel)
		}
		if msg.ChatID != "D555" {
			t.Errorf("chat id = %q, want D555", msg.ChatID)
		}
		if msg.SenderID != "U777" {
			t.Errorf("sender id = %q, want U777", msg.SenderID)
		}
		if msg.Content != "!ping" {
			t.Errorf("content = %q, want %q", msg.Content, "!ping")
		}
		if !msg.IsDirect {
			t.Error("channel D555 should be a direct message")
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestBotAndSubtypeMessagesDropped(t *testing.T) {
	api := &fakeAPI{botUserID: "UBOT"}
	a := newTestAdapter(t, api)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop(context.Background())

	a.events <- socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Data: &slackevents.MessageEvent{Type: "message", BotID: "B1", Text: "!ping", Channel: "C1"},
			},
		},
	}
	a.events <- socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Data: &slackevents.MessageEvent{Type: "message", SubType: "message_changed", Text: "!ping", Channel: "C1"},
			},
		},
	}

	select {
	case msg := <-a.Messages():
		t.Fatalf("unexpected message delivered: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStripMentions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<@UBOT> !ping", "!ping"},
		{"!ping <@UBOT>", "!ping"},
		{"!ping", "!ping"},
		{"<@UBOT>", ""},
	}
	for _, tt := range tests {
		if got := stripMentions(tt.in); got != tt.want {
			t.Errorf("stripMentions(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseSlackTimestamp(t *testing.T) {
	ts, err := parseSlackTimestamp("1700000000.000100")
	if err != nil {
		t.Fatalf("parseSlackTimestamp: %v", err)
	}
	if ts.Unix() != 1700000000 {
		t.Errorf("seconds = %d, want 1700000000", ts.Unix())
	}
	if _, err := parseSlackTimestamp("garbage"); err == nil {
		t.Error("expected error for invalid timestamp")
	}
}
