package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/commands"
)

func noopHandler(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("", commands.Command{Handler: noopHandler, Description: "x"})
	r.RegisterCommand("start", commands.Command{Handler: noopHandler, Description: "x"})
	r.RegisterCommand("/start", commands.Command{Description: "x"})
	r.RegisterCommand("/start", commands.Command{Handler: noopHandler})

	if got := len(r.ListCommands(false)); got != 0 {
		t.Fatalf("registered %d invalid commands", got)
	}

	r.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "begin"})
	r.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "duplicate"})

	list := r.ListCommands(false)
	if len(list) != 1 || list[0].Description != "begin" {
		t.Fatalf("list = %v, duplicate must not replace the original", list)
	}
}

func TestListCommandsHidesHiddenAndSorts(t *testing.T) {
	r := NewRegistry()
	r.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "begin"})
	r.RegisterCommand("/cancel", commands.Command{Handler: noopHandler, Description: "finish"})
	r.RegisterCommand("/debug", commands.Command{Handler: noopHandler, Description: "internal", Hidden: true})

	visible := r.ListCommands(true)
	if len(visible) != 2 || visible[0].Text != "/cancel" || visible[1].Text != "/start" {
		t.Fatalf("visible = %v, expected sorted [/cancel /start]", visible)
	}
	if got := len(r.ListCommands(false)); got != 3 {
		t.Fatalf("all = %d, expected 3", got)
	}
}

func TestTextFallbackRoundTrip(t *testing.T) {
	r := NewRegistry()
	if r.TextFallback() != nil {
		t.Fatal("fresh registry must have no fallback")
	}

	called := false
	r.SetTextFallback(func(tele.Context) error {
		called = true
		return nil
	})

	h := r.TextFallback()
	if h == nil {
		t.Fatal("fallback not stored")
	}
	if err := h(nil); err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if !called {
		t.Fatal("stored fallback was not invoked")
	}
}
