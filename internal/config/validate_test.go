package config

import "testing"

func TestValidateRejectsDuplicateNames(t *testing.T) {
	cfg := Config{Actions: []Action{
		{Name: "dim", Command: "x"},
		{Name: "dim", Command: "y"},
	}}
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for duplicate action names")
	}
}

func TestValidateRejectsMissingCommand(t *testing.T) {
	cfg := Config{Actions: []Action{{Name: "dim"}}}
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for action with no command")
	}
}

func TestValidateRejectsNotifyWithoutSeconds(t *testing.T) {
	cfg := Config{
		Actions:            []Action{{Name: "dim", Command: "x"}},
		NotifyBeforeAction: true,
	}
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error when notify_before_action is set with 0 seconds")
	}
}

func TestValidateRejectsCustomLidActionWithoutCommand(t *testing.T) {
	cfg := Config{
		Actions:        []Action{{Name: "dim", Command: "x"}},
		LidCloseAction: LidAction{Kind: LidCustom},
	}
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for custom lid action with no command")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
