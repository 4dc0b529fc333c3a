package service_test

import (
	"testing"

	"github.com/msomdec/focusvault/internal/domain"
	"github.com/msomdec/focusvault/internal/service"
)

func TestHub_DeliversToSubscribersOfSession(t *testing.T) {
	hub := service.NewHub()
	a, cancelA := hub.Subscribe("s1")
	defer cancelA()
	b, cancelB := hub.Subscribe("s2")
	defer cancelB()

	hub.Publish(service.Event{SessionID: "s1", Session: &domain.Session{ID: "s1", TimeRemaining: 10}})

	select {
	case ev := <-a:
		if ev.Session.TimeRemaining != 10 {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected event for s1 subscriber")
	}
	select {
	case ev := <-b:
		t.Fatalf("s2 subscriber got an s1 event: %+v", ev)
	default:
	}
}

func TestHub_MergesWhenSubscriberIsBehind(t *testing.T) {
	hub := service.NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	hub.Publish(service.Event{SessionID: "s1", TasksChanged: true})
	hub.Publish(service.Event{SessionID: "s1", Session: &domain.Session{ID: "s1", TimeRemaining: 9}})
	hub.Publish(service.Event{SessionID: "s1", Session: &domain.Session{ID: "s1", TimeRemaining: 8}})

	ev := <-ch
	if !ev.TasksChanged {
		t.Fatal("merged event lost the task change")
	}
	if ev.Session == nil || ev.Session.TimeRemaining != 8 {
		t.Fatalf("expected newest session state, got %+v", ev.Session)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected a single merged event, got another: %+v", extra)
	default:
	}
}

func TestHub_PublishCopiesSession(t *testing.T) {
	hub := service.NewHub()
	ch, cancel := hub.Subscribe("s1")
	defer cancel()

	s := &domain.Session{ID: "s1", ActiveParticipants: domain.Participants{"a"}}
	hub.Publish(service.Event{SessionID: "s1", Session: s})
	s.ActiveParticipants.Add("b")

	ev := <-ch
	if len(ev.Session.ActiveParticipants) != 1 {
		t.Fatalf("subscriber saw a later mutation: %v", ev.Session.ActiveParticipants)
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := service.NewHub()
	ch, cancel := hub.Subscribe("s1")
	other, cancelOther := hub.Subscribe("s1")

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}

	// The remaining subscriber still receives events.
	hub.Publish(service.Event{SessionID: "s1", TasksChanged: true})
	select {
	case ev := <-other:
		if !ev.TasksChanged {
			t.Fatalf("unexpected event: %+v", ev)
		}
	default:
		t.Fatal("expected the remaining subscriber to get the event")
	}

	// Publishing with no subscribers must not panic.
	cancelOther()
	hub.Publish(service.Event{SessionID: "s1", TasksChanged: true})
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	hub := service.NewHub()
	a, cancelA := hub.Subscribe("s1")
	b, cancelB := hub.Subscribe("s2")

	hub.Close()

	for _, ch := range []<-chan service.Event{a, b} {
		if _, ok := <-ch; ok {
			t.Fatal("expected channel to be closed")
		}
	}

	// Cancelling after Close is a no-op.
	cancelA()
	cancelB()
	hub.Publish(service.Event{SessionID: "s1", TasksChanged: true})
}
