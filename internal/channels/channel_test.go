package channels

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/relay/pkg/models"
)

// fakeAdapter is a minimal in-memory Adapter for registry tests.
type fakeAdapter struct {
	channelType models.ChannelType
	messages    chan *models.Message
	started     bool
	stopped     bool
	startErr    error
}

func newFakeAdapter(t models.ChannelType) *fakeAdapter {
	return &fakeAdapter{
		channelType: t,
		messages:    make(chan *models.Message, 8),
	}
}

func (f *fakeAdapter) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeAdapter) Stop(context.Context) error {
	f.stopped = true
	close(f.messages)
	return nil
}

func (f *fakeAdapter) Send(context.Context, *models.Message) error { return nil }
func (f *fakeAdapter) Messages() <-chan *models.Message            { return f.messages }
func (f *fakeAdapter) Type() models.ChannelType                    { return f.channelType }
func (f *fakeAdapter) Status() Status                              { return Status{Connected: f.started} }
func (f *fakeAdapter) HealthCheck(context.Context) HealthStatus {
	return HealthStatus{Healthy: f.started, LastCheck: time.Now()}
}

func TestRegistryRejectsDuplicateChannel(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(newFakeAdapter(models.ChannelDiscord)); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(newFakeAdapter(models.ChannelDiscord)); err == nil {
		t.Fatal("duplicate channel registration succeeded")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("nil adapter accepted")
	}
}

func TestStartAllStopsStartedAdaptersOnFailure(t *testing.T) {
	r := NewRegistry()
	good := newFakeAdapter(models.ChannelDiscord)
	bad := newFakeAdapter(models.ChannelTelegram)
	bad.startErr = errors.New("bad token")

	if err := r.Register(good); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(bad); err != nil {
		t.Fatal(err)
	}

	err := r.StartAll(context.Background())
	if err == nil {
		t.Fatal("StartAll succeeded despite a failing adapter")
	}
	// Whichever adapters started before the failure must be stopped again.
	if good.started && !good.stopped {
		t.Error("started adapter was not stopped after StartAll failure")
	}
}

func TestAggregateMessagesFansIn(t *testing.T) {
	r := NewRegistry()
	discord := newFakeAdapter(models.ChannelDiscord)
	telegram := newFakeAdapter(models.ChannelTelegram)
	if err := r.Register(discord); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(telegram); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agg := r.AggregateMessages(ctx)

	discord.messages <- &models.Message{Channel: models.ChannelDiscord, Content: "!ping"}
	telegram.messages <- &models.Message{Channel: models.ChannelTelegram, Content: "!help"}

	seen := map[models.ChannelType]bool{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-agg:
			seen[msg.Channel] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for aggregated message")
		}
	}
	if !seen[models.ChannelDiscord] || !seen[models.ChannelTelegram] {
		t.Fatalf("aggregated channels = %v, want both platforms", seen)
	}
}

func TestAggregateMessagesClosesWhenAdaptersStop(t *testing.T) {
	r := NewRegistry()
	a := newFakeAdapter(models.ChannelSlack)
	if err := r.Register(a); err != nil {
		t.Fatal(err)
	}

	agg := r.AggregateMessages(context.Background())
	if err := a.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case _, ok := <-agg:
		if ok {
			t.Fatal("unexpected message on aggregate channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("aggregate channel did not close after adapters stopped")
	}
}
